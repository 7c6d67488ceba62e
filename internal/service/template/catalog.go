// Package template resolves per-channel subject and body for a
// notification template key.
//
// The catalog is a YAML document keyed by template key, then by channel,
// with "default" as the fallback entry:
//
//	deadline_reminder:
//	  default:
//	    subject: "Deadline for {{.task_title}}"
//	    content: "{{.task_title}} is due {{.deadline}}"
//	  email:
//	    subject: "Reminder: {{.task_title}}"
//	    content: "<p><b>{{.task_title}}</b> is due {{.deadline}}</p>"
//
// Email entries are executed with html/template so variables are escaped;
// every other channel uses text/template.
package template

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"sync"
	texttemplate "text/template"

	"gopkg.in/yaml.v3"

	"taskhub-notify/internal/domain"
)

const defaultEntry = "default"

type Rendered struct {
	Subject string
	Content string
}

type Renderer interface {
	Render(key string, ch domain.Channel, vars map[string]any) (Rendered, error)
}

// Source returns the raw catalog document.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

type entry struct {
	Subject string `yaml:"subject"`
	Content string `yaml:"content"`
}

type compiled struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

type Catalog struct {
	source Source

	mu        sync.RWMutex
	templates map[string]map[string]compiled
}

func NewCatalog(ctx context.Context, source Source) (*Catalog, error) {
	c := &Catalog{source: source}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the source. On error the previous catalog stays active.
func (c *Catalog) Reload(ctx context.Context) error {
	data, err := c.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load template catalog: %w", err)
	}

	parsed, err := parse(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.templates = parsed
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.templates))
	for k := range c.templates {
		keys = append(keys, k)
	}
	return keys
}

func parse(data []byte) (map[string]map[string]compiled, error) {
	var raw map[string]map[string]entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}

	out := make(map[string]map[string]compiled, len(raw))
	for key, channels := range raw {
		out[key] = make(map[string]compiled, len(channels))
		for ch, e := range channels {
			name := key + "." + ch
			subject, err := texttemplate.New(name + ".subject").Parse(e.Subject)
			if err != nil {
				return nil, fmt.Errorf("template %s subject: %w", name, err)
			}
			ct := compiled{subject: subject}
			if ch == string(domain.ChannelEmail) {
				ct.html, err = htmltemplate.New(name + ".content").Parse(e.Content)
			} else {
				ct.text, err = texttemplate.New(name + ".content").Parse(e.Content)
			}
			if err != nil {
				return nil, fmt.Errorf("template %s content: %w", name, err)
			}
			out[key][ch] = ct
		}
	}
	return out, nil
}

func (c *Catalog) lookup(key string, ch domain.Channel) (compiled, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	channels, ok := c.templates[key]
	if !ok {
		return compiled{}, false
	}
	if t, ok := channels[string(ch)]; ok {
		return t, true
	}
	t, ok := channels[defaultEntry]
	return t, ok
}

// Render executes the entry for ch, falling back to the key's default
// entry. A default entry rendered for email is still text, so it is
// HTML-escaped before being returned.
func (c *Catalog) Render(key string, ch domain.Channel, vars map[string]any) (Rendered, error) {
	t, ok := c.lookup(key, ch)
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s/%s", domain.ErrTemplateNotFound, key, ch)
	}

	var subject, content bytes.Buffer
	if err := t.subject.Execute(&subject, vars); err != nil {
		return Rendered{}, fmt.Errorf("render %s subject: %w", key, err)
	}

	var err error
	if t.html != nil {
		err = t.html.Execute(&content, vars)
	} else {
		err = t.text.Execute(&content, vars)
	}
	if err != nil {
		return Rendered{}, fmt.Errorf("render %s content: %w", key, err)
	}

	body := content.String()
	if ch == domain.ChannelEmail && t.html == nil {
		body = htmltemplate.HTMLEscapeString(body)
	}
	return Rendered{Subject: subject.String(), Content: body}, nil
}
