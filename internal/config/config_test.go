package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"surveybox/internal/docstore"
	"surveybox/internal/ledger"
	"surveybox/internal/legacy"
)

// run parses args against flags and hands the context to fn.
func run(t *testing.T, flags []cli.Flag, args []string, fn func(c *cli.Context) error) {
	t.Helper()
	app := &cli.App{Name: "test", Flags: flags, Action: fn}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
}

func TestStoreOptions_FlagsAndEnv(t *testing.T) {
	t.Setenv("SURVEYBOX_MONGO_DB", "fromenv")
	run(t, StoreFlags(), []string{"--backend", "pebble", "--data-dir", "/tmp/x", "--retries", "5", "--retry-initial", "1s"}, func(c *cli.Context) error {
		assert.Equal(t, docstore.Options{
			Backend:      "pebble",
			DataDir:      "/tmp/x",
			MongoURI:     "mongodb://localhost:27017",
			MongoDB:      "fromenv",
			Retries:      5,
			RetryInitial: time.Second,
		}, StoreOptions(c))
		return nil
	})
}

func TestSource_Selection(t *testing.T) {
	cases := []struct {
		args    []string
		want    any
		wantErr string
	}{
		{args: []string{"--export-file", "dump.json"}, want: &legacy.ExportSource{}},
		{args: []string{"--source", "export"}, wantErr: "--export-file"},
		{args: []string{"--source", "firebase", "--firebase-project", "surveybox"}, want: &legacy.FirebaseSource{}},
		{args: []string{"--source", "firebase"}, wantErr: "--firebase-url"},
		{args: []string{"--source", "kafka"}, want: &legacy.KafkaSource{}},
		{args: []string{"--source", "kafka", "--kafka-brokers", " , "}, wantErr: "--kafka-brokers"},
		{args: []string{"--source", "s3"}, wantErr: "unknown source"},
	}
	for _, tc := range cases {
		run(t, SourceFlags(), tc.args, func(c *cli.Context) error {
			src, err := Source(c, zap.NewNop())
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return nil
			}
			require.NoError(t, err)
			assert.IsType(t, tc.want, src)
			return nil
		})
	}
}

func TestLedger_Selection(t *testing.T) {
	flags := func() []cli.Flag { return append(LedgerFlags(), SourceFlags()...) }
	dir := t.TempDir()

	run(t, flags(), []string{"--ledger-dir", dir}, func(c *cli.Context) error {
		l, err := Ledger(c)
		require.NoError(t, err)
		assert.IsType(t, &ledger.FileLedger{}, l)
		return nil
	})
	run(t, flags(), []string{"--ledger", "none"}, func(c *cli.Context) error {
		l, err := Ledger(c)
		require.NoError(t, err)
		assert.Equal(t, ledger.Nop{}, l)
		return nil
	})
	run(t, flags(), []string{"--ledger", "kafka"}, func(c *cli.Context) error {
		l, err := Ledger(c)
		require.NoError(t, err)
		assert.IsType(t, &ledger.KafkaLedger{}, l)
		return nil
	})
	run(t, flags(), []string{"--ledger", "both", "--ledger-dir", dir}, func(c *cli.Context) error {
		_, err := Ledger(c)
		require.NoError(t, err)
		return nil
	})
	run(t, flags(), []string{"--ledger", "redis"}, func(c *cli.Context) error {
		_, err := Ledger(c)
		assert.ErrorContains(t, err, "unknown ledger")
		return nil
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SURVEYBOX_TEST_LOADENV=from-file\nSURVEYBOX_TEST_PRESET=from-file\n"), 0o600))
	t.Setenv("SURVEYBOX_ENV_FILE", path)
	t.Setenv("SURVEYBOX_TEST_PRESET", "from-env")
	t.Setenv("SURVEYBOX_TEST_LOADENV", "")
	require.NoError(t, os.Unsetenv("SURVEYBOX_TEST_LOADENV"))

	require.NoError(t, LoadEnv())
	assert.Equal(t, "from-file", os.Getenv("SURVEYBOX_TEST_LOADENV"))
	assert.Equal(t, "from-env", os.Getenv("SURVEYBOX_TEST_PRESET"))

	t.Setenv("SURVEYBOX_ENV_FILE", filepath.Join(dir, "missing.env"))
	assert.NoError(t, LoadEnv())
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, SplitBrokers(" a:1,,b:2 "))
	assert.Nil(t, SplitBrokers(""))
}
