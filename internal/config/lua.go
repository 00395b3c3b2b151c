package config

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/arnodel/golua/lib"
	rt "github.com/arnodel/golua/runtime"
)

// Execution limits for configuration scripts.
const (
	luaCPULimit    = 10_000_000
	luaMemoryLimit = 50 * 1024 * 1024
)

// ErrLimitExceeded is returned when a configuration script exceeds its
// CPU or memory budget.
var ErrLimitExceeded = errors.New("configuration script exceeded its resource limits")

// LuaParser evaluates a configuration script and reads the vellogd.config
// table it leaves behind.
type LuaParser struct {
	mu      sync.Mutex
	runtime *rt.Runtime
	cleanup func()
	expand  func(string) string
}

// NewLuaParser returns a parser with a fresh Lua runtime. Script output
// (print) goes to stdout, or is discarded when stdout is nil.
func NewLuaParser(stdout io.Writer) *LuaParser {
	if stdout == nil {
		stdout = io.Discard
	}
	r := rt.New(stdout)
	return &LuaParser{runtime: r, cleanup: lib.LoadAll(r), expand: ExpandEnv}
}

// Parse runs content and returns the resulting configuration, starting
// from DefaultConfig.
func (p *LuaParser) Parse(content []byte) (*Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runtime == nil {
		return nil, errors.New("lua parser closed")
	}

	root := rt.NewTable()
	root.Set(rt.StringValue("config"), rt.TableValue(rt.NewTable()))
	p.runtime.GlobalEnv().Set(rt.StringValue("vellogd"), rt.TableValue(root))

	chunk, err := p.runtime.CompileAndLoadLuaChunk("config", content, rt.TableValue(p.runtime.GlobalEnv()))
	if err != nil {
		return nil, fmt.Errorf("compile configuration: %w", err)
	}

	if err := p.run(chunk); err != nil {
		return nil, fmt.Errorf("run configuration: %w", err)
	}
	return p.extract()
}

// run calls chunk under the execution limits. golua panics when a hard
// limit is exceeded.
func (p *LuaParser) run(chunk *rt.Closure) (err error) {
	p.runtime.PushContext(rt.RuntimeContextDef{
		HardLimits: rt.RuntimeResources{Cpu: luaCPULimit, Memory: luaMemoryLimit},
	})
	defer p.runtime.PopContext()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrLimitExceeded, r)
		}
	}()

	_, err = rt.Call1(p.runtime.MainThread(), rt.FunctionValue(chunk))
	return err
}

func (p *LuaParser) extract() (*Config, error) {
	cfg := DefaultConfig()

	root, ok := p.runtime.GlobalEnv().Get(rt.StringValue("vellogd")).TryTable()
	if !ok {
		return nil, errors.New("vellogd is not a table")
	}
	v := root.Get(rt.StringValue("config"))
	if v == rt.NilValue {
		return &cfg, nil
	}
	t, ok := v.TryTable()
	if !ok {
		return nil, errors.New("vellogd.config is not a table")
	}

	r := reader{expand: p.expand}
	if w := r.section(t, "window"); w != nil {
		r.getString(w, "title", &cfg.Window.Title)
		r.getInt(w, "width", &cfg.Window.Width)
		r.getInt(w, "height", &cfg.Window.Height)
		r.getBool(w, "skip_taskbar", &cfg.Window.SkipTaskbar)
		r.getBool(w, "skip_pager", &cfg.Window.SkipPager)
		r.getBool(w, "always_on_top", &cfg.Window.AlwaysOnTop)
		r.getBool(w, "transparent", &cfg.Window.Transparent)
	}
	if s := r.section(t, "render"); s != nil {
		r.getSeconds(s, "refresh_interval", &cfg.Render.RefreshInterval)
		r.getBool(s, "headless", &cfg.Render.Headless)
		var base string
		if r.getString(s, "base_color", &base) {
			c, err := ParseColor(base)
			if err != nil {
				r.fail("render.base_color", err)
			} else {
				cfg.Render.BaseColor = c
			}
		}
	}
	if s := r.section(t, "transport"); s != nil {
		r.getString(s, "network", &cfg.Transport.Network)
		r.getString(s, "address", &cfg.Transport.Address)
		r.getSeconds(s, "handshake_timeout", &cfg.Transport.HandshakeTimeout)
		r.getInt(s, "queue_size", &cfg.Transport.QueueSize)
	}
	if s := r.section(t, "ssh"); s != nil {
		r.getString(s, "host", &cfg.SSH.Host)
		r.getInt(s, "port", &cfg.SSH.Port)
		r.getString(s, "user", &cfg.SSH.User)
		r.getString(s, "key_file", &cfg.SSH.KeyFile)
		r.getString(s, "passphrase", &cfg.SSH.Passphrase)
		r.getString(s, "password", &cfg.SSH.Password)
		r.getBool(s, "agent", &cfg.SSH.UseAgent)
		r.getString(s, "known_hosts", &cfg.SSH.KnownHosts)
		r.getBool(s, "insecure_ignore_host_key", &cfg.SSH.InsecureIgnoreHostKey)
		r.getSeconds(s, "keepalive", &cfg.SSH.KeepAlive)
	}
	if s := r.section(t, "log"); s != nil {
		r.getString(s, "level", &cfg.Log.Level)
		r.getString(s, "format", &cfg.Log.Format)
	}
	if s := r.section(t, "record"); s != nil {
		r.getString(s, "path", &cfg.Record.Path)
		r.getInt(s, "fps", &cfg.Record.FPS)
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Close releases the Lua runtime.
func (p *LuaParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cleanup != nil {
		p.cleanup()
		p.cleanup = nil
	}
	p.runtime = nil
	return nil
}

// reader pulls typed values out of Lua tables, collecting type errors.
// Absent keys leave the target untouched.
type reader struct {
	expand func(string) string
	path   string
	errs   []error
}

func (r *reader) fail(key string, err error) {
	r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
}

func (r *reader) key(k string) string {
	if r.path == "" {
		return k
	}
	return r.path + "." + k
}

// section returns the named sub-table and scopes error keys to it.
func (r *reader) section(t *rt.Table, name string) *rt.Table {
	r.path = ""
	v := t.Get(rt.StringValue(name))
	if v == rt.NilValue {
		return nil
	}
	s, ok := v.TryTable()
	if !ok {
		r.fail(name, errors.New("expected a table"))
		return nil
	}
	r.path = name
	return s
}

func (r *reader) getString(t *rt.Table, k string, dst *string) bool {
	v := t.Get(rt.StringValue(k))
	if v == rt.NilValue {
		return false
	}
	s, ok := v.TryString()
	if !ok {
		r.fail(r.key(k), errors.New("expected a string"))
		return false
	}
	*dst = r.expand(s)
	return true
}

func (r *reader) getBool(t *rt.Table, k string, dst *bool) {
	v := t.Get(rt.StringValue(k))
	if v == rt.NilValue {
		return
	}
	b, ok := v.TryBool()
	if !ok {
		r.fail(r.key(k), errors.New("expected a boolean"))
		return
	}
	*dst = b
}

func (r *reader) number(t *rt.Table, k string) (float64, bool) {
	v := t.Get(rt.StringValue(k))
	if v == rt.NilValue {
		return 0, false
	}
	if n, ok := v.TryInt(); ok {
		return float64(n), true
	}
	if f, ok := v.TryFloat(); ok {
		return f, true
	}
	r.fail(r.key(k), errors.New("expected a number"))
	return 0, false
}

func (r *reader) getInt(t *rt.Table, k string, dst *int) {
	if n, ok := r.number(t, k); ok {
		*dst = int(n)
	}
}

// getSeconds reads a duration given in (possibly fractional) seconds.
func (r *reader) getSeconds(t *rt.Table, k string, dst *time.Duration) {
	if n, ok := r.number(t, k); ok {
		*dst = time.Duration(n * float64(time.Second))
	}
}
