package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultServiceTimeout = 10 * time.Second

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithServiceTimeout sets the per-request timeout. Defaults to 10s.
func WithServiceTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithServiceHTTPClient replaces the HTTP client, mainly for tests.
func WithServiceHTTPClient(c *http.Client) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.client = c
		}
	}
}

// Service is the HTTP client for the external pose/session data service.
// It implements [PoseSource].
type Service struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewService creates a client for the data service at baseURL, e.g.
// "http://localhost:8000/api".
func NewService(baseURL string, opts ...ServiceOption) (*Service, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid data service URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid data service URL %q: scheme must be http or https", baseURL)
	}

	s := &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultServiceTimeout,
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Poses fetches the full pose catalog.
func (s *Service) Poses(ctx context.Context) ([]Pose, error) {
	var poses []Pose
	if err := s.getJSON(ctx, s.baseURL+"/poses", &poses); err != nil {
		return nil, fmt.Errorf("fetch poses: %w", err)
	}
	return poses, nil
}

// PoseByID fetches a single pose.
func (s *Service) PoseByID(ctx context.Context, id string) (Pose, error) {
	var pose Pose
	if err := s.getJSON(ctx, s.baseURL+"/poses/"+url.PathEscape(id), &pose); err != nil {
		return Pose{}, fmt.Errorf("fetch pose %s: %w", id, err)
	}
	return pose, nil
}

// SessionResult is the payload the data service accepts for a finished
// practice session.
type SessionResult struct {
	Poses      []string  `json:"poses"`
	Accuracies []float64 `json:"accuracies"`
	// DurationSeconds is the total session length.
	DurationSeconds int `json:"duration"`
}

// serviceReply is the envelope the data service wraps responses in.
type serviceReply struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SaveSessionResult reports a finished session to the data service.
func (s *Service) SaveSessionResult(ctx context.Context, result SessionResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode session result: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/save_session_result", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("save session result: %w", err)
	}
	defer resp.Body.Close()

	var reply serviceReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&reply); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("save session result: status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode save response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || reply.Status == "error" {
		return fmt.Errorf("save session result: status %d: %s", resp.StatusCode, reply.Message)
	}
	return nil
}

// RemoteRecord is one practice session as the data service reports it.
type RemoteRecord struct {
	ID       string  `json:"id"`
	PoseName string  `json:"pose_name"`
	Accuracy float64 `json:"accuracy"`
	// DurationSeconds is the recorded session length.
	DurationSeconds int    `json:"duration"`
	Date            string `json:"date"`
}

// SessionHistory fetches the practice sessions the data service has stored.
func (s *Service) SessionHistory(ctx context.Context) ([]RemoteRecord, error) {
	var records []RemoteRecord
	if err := s.getJSON(ctx, s.baseURL+"/session_history", &records); err != nil {
		return nil, fmt.Errorf("fetch session history: %w", err)
	}
	return records, nil
}

func (s *Service) getJSON(ctx context.Context, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ PoseSource = (*Service)(nil)
var _ PoseSource = (*Catalog)(nil)
