// Package rodform binds the form interfaces to a live browser page driven
// through Rod. Discovery serialises the whole form inventory in a single
// page-level Eval returning JSON; writes go back as targeted Evals keyed by
// form and element index.
package rodform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/formkeep/form"
)

// Config configures the browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome via launcher.
	RemoteURL string

	// Stealth enables the stealth page mode for automation-hostile sites.
	Stealth bool

	// NavTimeout bounds Navigate plus WaitLoad. Default: 30s.
	NavTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session owns one browser connection. Open as many pages as needed.
type Session struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Connect launches a local Chrome (or attaches to a remote one) and returns
// a Session ready to open pages.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()

	wsURL := cfg.RemoteURL
	var lnch *launcher.Launcher
	if wsURL == "" {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodform: launch: %w", err)
		}
		wsURL = u
		lnch = l
		cfg.Logger.Info("rodform: launched local chrome", "url", wsURL)
	} else {
		cfg.Logger.Info("rodform: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Kill()
		}
		return nil, fmt.Errorf("rodform: connect: %w", err)
	}

	return &Session{cfg: cfg, browser: b, lnch: lnch}, nil
}

// Close shuts down the browser connection and, when Chrome was launched
// locally, the Chrome process.
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.lnch != nil {
		s.lnch.Kill()
		s.lnch.Cleanup()
	}
	return err
}

// Page is one open tab whose forms are exposed through the form interfaces.
type Page struct {
	session *Session
	page    *rod.Page
	pageURL string
}

// Open creates a tab, navigates to the URL and waits for the load event.
func (s *Session) Open(ctx context.Context, pageURL string) (*Page, error) {
	var page *rod.Page
	var err error
	if s.cfg.Stealth {
		page, err = stealth.Page(s.browser)
	} else {
		page, err = s.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("rodform: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("rodform: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("rodform: wait load timeout", "url", pageURL, "error", err)
	}

	return &Page{session: s, page: page, pageURL: pageURL}, nil
}

// URL returns the address the page was opened at.
func (p *Page) URL() string { return p.pageURL }

// Close closes the tab.
func (p *Page) Close() error { return p.page.Close() }

// Discoverer returns a discovery function bound to this page. Each call
// re-scans the live DOM, so callers see the current form generation.
func (p *Page) Discoverer(ctx context.Context) form.Discoverer {
	return func() []form.Form {
		forms, err := p.scan(ctx)
		if err != nil {
			p.session.cfg.Logger.Warn("rodform: scan failed", "url", p.pageURL, "error", err)
			return nil
		}
		return forms
	}
}

// eval runs a write-side script. Failures are logged, not returned: the
// form interfaces are infallible and a lost write must never break restore.
func (p *Page) eval(ctx context.Context, js string, args ...interface{}) {
	if _, err := p.page.Context(ctx).Eval(js, args...); err != nil {
		p.session.cfg.Logger.Warn("rodform: eval failed", "url", p.pageURL, "error", err)
	}
}

// scanScript serialises every form on the page: identity, controls with
// their current values, and designated custom-widget containers.
const scanScript = `() => {
	const forms = [];
	for (let i = 0; i < document.forms.length; i++) {
		const f = document.forms[i];
		const fields = [];
		for (let j = 0; j < f.elements.length; j++) {
			const el = f.elements[j];
			const tag = el.tagName.toLowerCase();
			if (tag !== 'input' && tag !== 'select' && tag !== 'textarea') continue;
			const fd = {
				index: j,
				tag: tag,
				type: (el.type || '').toLowerCase(),
				name: el.name || '',
				value: el.value || '',
				checked: !!el.checked,
				multiple: !!el.multiple,
				options: [],
				files: []
			};
			if (tag === 'select') {
				for (const o of el.options) {
					fd.options.push({value: o.value, selected: o.selected});
				}
			}
			if (el.files) {
				for (const file of el.files) {
					fd.files.push({name: file.name, size: file.size, type: file.type});
				}
			}
			fields.push(fd);
		}
		const widgets = [];
		const ws = f.querySelectorAll('[data-widget]');
		for (let j = 0; j < ws.length; j++) {
			const w = ws[j];
			const wd = {
				index: j,
				kind: w.dataset.widget || '',
				name: w.dataset.name || w.getAttribute('name') || '',
				open: w.dataset.open === 'true',
				files: []
			};
			for (const n of w.querySelectorAll('[data-file-name]')) {
				wd.files.push({
					name: n.dataset.fileName || '',
					size: Number(n.dataset.fileSize || 0),
					type: n.dataset.fileType || ''
				});
			}
			widgets.push(wd);
		}
		forms.push({index: i, id: f.id || '', name: f.getAttribute('name') || '', fields: fields, widgets: widgets});
	}
	return JSON.stringify(forms);
}`

func (p *Page) scan(ctx context.Context) ([]form.Form, error) {
	res, err := p.page.Context(ctx).Eval(scanScript)
	if err != nil {
		return nil, fmt.Errorf("rodform: scan forms: %w", err)
	}

	var scanned []scannedForm
	if err := json.Unmarshal([]byte(res.Value.Str()), &scanned); err != nil {
		return nil, fmt.Errorf("rodform: decode scan: %w", err)
	}

	forms := make([]form.Form, 0, len(scanned))
	for i := range scanned {
		forms = append(forms, &rodForm{page: p, ctx: ctx, data: &scanned[i]})
	}
	return forms, nil
}
