package soup

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
)

type Cache interface {
	Key(*http.Request) (string, error)
	Get(string, *http.Request) (*http.Response, error)
	Set(string, *http.Request, *http.Response) error
}

// Transport retries failed requests, waits on RateLimiter before each
// attempt and serves successful responses from Cache when set.
type Transport struct {
	Transport   http.RoundTripper
	RetryCount  int
	RateLimiter <-chan time.Time
	Cache       Cache
	UserAgent   string
	Timeout     time.Duration
	Logger      *zap.Logger
}

// FileCache stores one dumped response per request below Root. The first
// line of each file holds the unescaped request url for humans.
type FileCache struct{ Root string }

var invalidFileNameChars = regexp.MustCompile(`[^-_0-9a-zA-Z]+`)

func (t Transport) Client() *http.Client {
	if t.Transport == nil {
		// some websites block low tls versions (go defaults to 1.2)
		t.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13},
		}
	}
	return &http.Client{Transport: &t, Timeout: t.Timeout}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Transport == nil {
		t.Transport = http.DefaultTransport
	}
	log := t.logger().With(zap.String("method", req.Method), zap.Stringer("url", req.URL))
	k := ""
	if t.Cache != nil {
		key, err := t.Cache.Key(req)
		if err != nil {
			return nil, fmt.Errorf("cache key: %w", err)
		}
		k = key
		res, err := t.Cache.Get(k, req)
		if res != nil || (err != nil && !errors.Is(err, fs.ErrNotExist)) {
			log.Debug("cache hit", zap.String("key", k), zap.Error(err))
			return res, err
		}
		log.Debug("cache miss", zap.String("key", k))
	}
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	res, err := t.roundTrip(req)
	for i := 0; i < t.RetryCount && (err != nil || res.StatusCode >= 400); i++ {
		if err == nil {
			log.Debug("retrying", zap.Int("attempt", i+1), zap.Int("status", res.StatusCode))
			res.Body.Close()
		} else {
			log.Debug("retrying", zap.Int("attempt", i+1), zap.Error(err))
		}
		if req, err = rewind(req); err != nil {
			return nil, err
		}
		res, err = t.roundTrip(req)
	}
	if err != nil {
		log.Warn("request failed", zap.Error(err))
		return nil, err
	}
	if res.StatusCode < 400 && t.Cache != nil {
		if err := t.Cache.Set(k, req, res); err != nil {
			log.Error("cache set failed", zap.String("key", k), zap.Error(err))
		}
	}
	log.Debug("fetched", zap.Int("status", res.StatusCode))
	return res, nil
}

func (t *Transport) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

func (t *Transport) roundTrip(req *http.Request) (*http.Response, error) {
	if t.RateLimiter != nil {
		<-t.RateLimiter
	}
	return t.Transport.RoundTrip(req)
}

func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.GetBody == nil {
		return req, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind body: %w", err)
	}
	req = req.Clone(req.Context())
	req.Body = body
	return req, nil
}

func (c *FileCache) Key(req *http.Request) (string, error) {
	key := invalidFileNameChars.ReplaceAllString(req.Method+"_"+req.URL.Host+"_"+req.URL.Path, "_")
	if len(key) > 40 {
		key = key[:40]
	}
	h := sha256.New()
	h.Write([]byte(req.Method + "::" + req.URL.String()))
	if req.Body != nil && req.Body != http.NoBody {
		bs, err := io.ReadAll(req.Body)
		if err != nil {
			return "", err
		}
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(bs))
		req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(bs)), nil }
		h.Write(bs)
	}
	return filepath.Join(c.Root, key+"_"+hex.EncodeToString(h.Sum(nil))[:16]), nil
}

func (c *FileCache) Get(k string, req *http.Request) (*http.Response, error) {
	bs, err := os.ReadFile(k)
	if err != nil {
		return nil, err
	}
	_, dump, ok := bytes.Cut(bs, []byte("\n"))
	if !ok {
		return nil, fmt.Errorf("invalid cache entry: %s", k)
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(dump)), req)
}

func (c *FileCache) Set(k string, req *http.Request, res *http.Response) error {
	bs, err := httputil.DumpResponse(res, true)
	if err != nil {
		return err
	}
	u, err := url.PathUnescape(req.URL.String())
	if err != nil {
		u = req.URL.String()
	}
	bs = append([]byte(u+"\n"), bs...)
	if err := os.MkdirAll(c.Root, 0755); err != nil {
		return err
	}
	return os.WriteFile(k, bs, 0644)
}
