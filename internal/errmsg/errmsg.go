package errmsg

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind identifies a class of user-visible failure.
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindInvalidInput          Kind = "invalid_input"
	KindInvalidPath           Kind = "invalid_path"
	KindInvalidState          Kind = "invalid_state"
	KindStorageQuotaExceeded  Kind = "storage_quota_exceeded"
	KindDocumentQuotaExceeded Kind = "document_quota_exceeded"
	KindTempUnavailable       Kind = "temp_unavailable"
	KindAuthFailure           Kind = "auth_failure"
	KindUnauthenticated       Kind = "unauthenticated"
	KindInternal              Kind = "internal"
)

//go:embed messages.yaml
var defaultMessages []byte

// Entry is the template set registered for one kind.
type Entry struct {
	Code      string   `yaml:"code"`
	Status    int      `yaml:"status"`
	Retryable bool     `yaml:"retryable"`
	Messages  []string `yaml:"messages"`
	Hint      string   `yaml:"hint"`
}

// Message is a rendered, user-facing error.
type Message struct {
	Code      string
	Status    int
	Retryable bool
	Message   string
	Hint      string
}

// Args fills {placeholders} in templates.
type Args map[string]string

// Registry maps error kinds to message templates. Rendering is deterministic:
// the same kind, seed and args always produce the same text.
type Registry struct {
	entries map[Kind]Entry
}

// Load parses a YAML registry. Every entry needs a code, a status and at least one message,
// and the internal kind must be present since it is the fallback.
func Load(data []byte) (*Registry, error) {
	raw := map[Kind]Entry{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	for kind, e := range raw {
		if e.Code == "" || e.Status == 0 || len(e.Messages) == 0 {
			return nil, fmt.Errorf("message %q: code, status and messages are required", kind)
		}
	}
	if _, ok := raw[KindInternal]; !ok {
		return nil, fmt.Errorf("message %q is required", KindInternal)
	}
	return &Registry{entries: raw}, nil
}

// Default returns the registry compiled into the binary.
func Default() *Registry {
	r, err := Load(defaultMessages)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the entry for kind, falling back to the internal entry.
func (r *Registry) Lookup(kind Kind) Entry {
	if e, ok := r.entries[kind]; ok {
		return e
	}
	return r.entries[KindInternal]
}

// Render picks the message variant by seed and fills placeholders from args.
func (r *Registry) Render(kind Kind, seed uint64, args Args) Message {
	e := r.Lookup(kind)
	tmpl := e.Messages[seed%uint64(len(e.Messages))]
	return Message{
		Code:      e.Code,
		Status:    e.Status,
		Retryable: e.Retryable,
		Message:   fill(tmpl, args),
		Hint:      fill(e.Hint, args),
	}
}

func fill(tmpl string, args Args) string {
	if len(args) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, len(args)*2)
	for k, v := range args {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
