package legacy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"surveybox/internal/model"
)

// FirebaseSource reads both tables over the realtime database REST API:
// GET {base}/{table}.json.
type FirebaseSource struct {
	baseURL string
	auth    string
	client  *retryablehttp.Client
}

// NewFirebaseSource builds a source for https://{project}.firebaseio.com or
// any compatible base URL. auth is an optional database secret or token.
func NewFirebaseSource(baseURL string, auth string, log *zap.Logger) *FirebaseSource {
	c := retryablehttp.NewClient()
	c.RetryMax = 4
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 10 * time.Second
	c.HTTPClient.Timeout = 2 * time.Minute
	c.Logger = leveledZap{log.Sugar()}
	return &FirebaseSource{baseURL: strings.TrimRight(baseURL, "/"), auth: auth, client: c}
}

// ProjectURL returns the default realtime database URL for a project.
func ProjectURL(project string) string {
	return fmt.Sprintf("https://%s.firebaseio.com", project)
}

func (f *FirebaseSource) Read(ctx context.Context) (Tables, error) {
	prod, err := f.table(ctx, ProdTable)
	if err != nil {
		return Tables{}, err
	}
	test, err := f.table(ctx, TestTable)
	if err != nil {
		return Tables{}, err
	}
	return Tables{Prod: prod, Test: test}, nil
}

func (f *FirebaseSource) table(ctx context.Context, name string) (map[string]model.LegacyEvent, error) {
	u := fmt.Sprintf("%s/%s.json", f.baseURL, url.PathEscape(name))
	if f.auth != "" {
		u += "?auth=" + url.QueryEscape(f.auth)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("fetch %s: invalid JSON body", name)
	}
	return parseTable(name, gjson.ParseBytes(body))
}

// leveledZap adapts zap to retryablehttp.LeveledLogger.
type leveledZap struct{ s *zap.SugaredLogger }

func (l leveledZap) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveledZap) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveledZap) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveledZap) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
