// Package participant resolves participant demographics needed for lab
// orders. Payloads are explicit typed records validated where they are
// received, never untyped maps.
package participant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"kittrack/pkg/platform/sentinel"
)

// Address is a participant's mailing address.
type Address struct {
	Street1 string `json:"street1"`
	Street2 string `json:"street2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// Participant carries the demographics an order needs.
type Participant struct {
	GUID      string   `json:"guid"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Address   *Address `json:"address"`
}

// Validate checks the fields order placement depends on.
func (p *Participant) Validate() error {
	if p.GUID == "" {
		return fmt.Errorf("participant has no guid")
	}
	if p.Address == nil {
		return fmt.Errorf("participant %s has no address", p.GUID)
	}
	return nil
}

// Directory looks up a participant by identifier.
type Directory interface {
	Lookup(ctx context.Context, participantID string) (*Participant, error)
}

// HTTPDirectory fetches participants from the participant index service.
type HTTPDirectory struct {
	http    *http.Client
	baseURL string
}

func NewHTTPDirectory(httpClient *http.Client, baseURL string) *HTTPDirectory {
	return &HTTPDirectory{http: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (d *HTTPDirectory) Lookup(ctx context.Context, participantID string) (*Participant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/participants/"+participantID, nil)
	if err != nil {
		return nil, fmt.Errorf("build participant request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup participant %s: %w", participantID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, sentinel.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup participant %s: status %d", participantID, resp.StatusCode)
	}

	var p Participant
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode participant %s: %w", participantID, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// InMemoryDirectory serves seeded participants; used in tests and local
// deployments without an index service.
type InMemoryDirectory struct {
	mu           sync.RWMutex
	participants map[string]Participant
}

func NewMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{participants: make(map[string]Participant)}
}

func (d *InMemoryDirectory) Seed(id string, p Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.participants[id] = p
}

func (d *InMemoryDirectory) Lookup(_ context.Context, participantID string) (*Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.participants[participantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}
