package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"surveybox/internal/legacy"
	"surveybox/internal/model"
	"surveybox/internal/window"
)

const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

func main() {
	app := &cli.App{
		Name:  "genlegacy",
		Usage: "generate a synthetic legacy database export and a matching window table",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "count", Usage: "number of events to generate", Value: 100},
			&cli.Float64Flag{Name: "test-share", Usage: "fraction of events written to the test table", Value: 0.2},
			&cli.Float64Flag{Name: "dup-share", Usage: "fraction of events that repeat the previous timestamp", Value: 0.1},
			&cli.IntFlag{Name: "windows", Usage: "number of deployment windows to cut", Value: 3},
			&cli.StringSliceFlag{Name: "stream", Usage: "destination stream ids, cycled over windows", Value: cli.NewStringSlice("stream-a", "stream-b")},
			&cli.StringFlag{Name: "output", Usage: "export file", Value: "legacy-export.json"},
			&cli.StringFlag{Name: "windows-output", Usage: "window table file", Value: "windows.yaml"},
			&cli.Int64Flag{Name: "seed", Usage: "random seed, 0 uses the clock"},
		},
		Action: func(c *cli.Context) error {
			seed := c.Int64("seed")
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			rng := rand.New(rand.NewSource(seed))
			return generate(rng, c.Int("count"), c.Float64("test-share"), c.Float64("dup-share"),
				c.Int("windows"), c.StringSlice("stream"), c.String("output"), c.String("windows-output"))
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "genlegacy:", err)
		os.Exit(1)
	}
}

func generate(rng *rand.Rand, count int, testShare, dupShare float64, windows int, streams []string, output, windowsOutput string) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	prod := make(map[string]model.LegacyEvent)
	test := make(map[string]model.LegacyEvent)
	ids := make([]string, 0, count)
	types := []string{"press", "press", "press", "heartbeat"}

	ts := float64(time.Now().UTC().Unix() - int64(count)*60)
	for i := 0; i < count; i++ {
		if i == 0 || rng.Float64() >= dupShare {
			ts += float64(1 + rng.Intn(120))
		}
		id := pushID(rng, ts)
		ev := model.LegacyEvent{
			Timestamp: ts,
			Type:      types[rng.Intn(len(types))],
			Response:  json.RawMessage(fmt.Sprintf(`{"button":%d}`, 1+rng.Intn(4))),
		}
		if rng.Float64() < testShare {
			test[id] = ev
		} else {
			prod[id] = ev
		}
		ids = append(ids, id)
	}

	export := map[string]map[string]model.LegacyEvent{legacy.ProdTable: prod, legacy.TestTable: test}
	if err := writeJSON(output, export); err != nil {
		return err
	}

	// Windows are cut from ids in generation order, which is timestamp order.
	var table struct {
		Windows []window.DeploymentWindow `yaml:"windows"`
	}
	if windows > 0 && len(streams) > 0 {
		size := count / windows
		for w := 0; w < windows && size > 0; w++ {
			table.Windows = append(table.Windows, window.DeploymentWindow{
				StartID:  ids[w*size],
				EndID:    ids[(w+1)*size-1],
				StreamID: streams[w%len(streams)],
			})
		}
	}
	out, err := yaml.Marshal(&table)
	if err != nil {
		return fmt.Errorf("encode windows: %w", err)
	}
	if err := os.WriteFile(windowsOutput, out, 0o644); err != nil {
		return fmt.Errorf("write windows: %w", err)
	}

	fmt.Printf("generated %d events (%d prod, %d test) to %s, %d windows to %s\n",
		count, len(prod), len(test), output, len(table.Windows), windowsOutput)
	return nil
}

// pushID mimics the shape of realtime database push ids: a time prefix
// followed by random characters.
func pushID(rng *rand.Rand, ts float64) string {
	ms := int64(ts * 1000)
	b := make([]byte, 20)
	for i := 7; i >= 0; i-- {
		b[i] = pushChars[ms%64]
		ms /= 64
	}
	for i := 8; i < 20; i++ {
		b[i] = pushChars[rng.Intn(64)]
	}
	return string(b)
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}
