package script

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/sources/scraper"
)

// sourceVar is the global a script assigns its definition to.
const sourceVar = "source"

// definition is the JSON shape of the `source` object.
type definition struct {
	BaseURL  string                `json:"baseUrl"`
	Popular  *scraper.ListingTable `json:"popular"`
	Latest   *scraper.ListingTable `json:"latest"`
	Search   *scraper.ListingTable `json:"search"`
	Detail   scraper.DetailTable   `json:"detail"`
	Chapters scraper.ChapterTable  `json:"chapters"`
	Content  scraper.ContentTable  `json:"content"`
	Headers  map[string]string     `json:"headers"`
	Cookies  map[string]string     `json:"cookies"`
	Filters  []filter              `json:"filters"`
}

// filter is the script-facing form of domain.Filter.
type filter struct {
	Kind      domain.FilterKind `json:"kind"`
	Name      string            `json:"name"`
	Options   []string          `json:"options,omitempty"`
	Filters   []filter          `json:"filters,omitempty"`
	Text      string            `json:"text,omitempty"`
	State     int               `json:"state,omitempty"`
	Ascending bool              `json:"ascending,omitempty"`
}

func toDomainFilters(in []filter) []domain.Filter {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Filter, len(in))
	for i, f := range in {
		out[i] = domain.Filter{
			Kind: f.Kind, Name: f.Name, Options: f.Options, Filters: toDomainFilters(f.Filters),
			Text: f.Text, State: f.State, Ascending: f.Ascending,
		}
	}
	return out
}

func fromDomainFilters(in []domain.Filter) []filter {
	out := make([]filter, len(in))
	for i, f := range in {
		out[i] = filter{
			Kind: f.Kind, Name: f.Name, Options: f.Options, Filters: fromDomainFilters(f.Filters),
			Text: f.Text, State: f.State, Ascending: f.Ascending,
		}
	}
	return out
}

// request is the object returned by a buildSearchRequest hook.
type request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Form    map[string]string `json:"form"`
	Body    string            `json:"body"`
}

func (r request) toHTTP() (*driven.HTTPRequest, error) {
	if r.URL == "" {
		return nil, domain.ValidationError("buildSearchRequest returned no url", nil)
	}
	req := &driven.HTTPRequest{Method: r.Method, URL: r.URL, Headers: r.Headers}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if len(r.Form) > 0 {
		req.Form = url.Values{}
		for k, v := range r.Form {
			req.Form.Set(k, v)
		}
	}
	if r.Body != "" {
		req.Body = []byte(r.Body)
	}
	return req, nil
}

// runtime is one evaluated script. The goja runtime is not safe for
// concurrent use, so hook calls are serialized.
type runtime struct {
	pkg     string
	timeout time.Duration
	cfg     scraper.Config

	mu        sync.Mutex
	vm        *goja.Runtime
	stringify goja.Callable
	parse     goja.Callable
	build     goja.Callable
}

func evaluate(pkg, code string, timeout time.Duration) (*runtime, error) {
	prog, err := goja.Compile(pkg+ScriptSuffix, code, false)
	if err != nil {
		return nil, domain.ValidationError("compile "+pkg, err)
	}

	rt := &runtime{pkg: pkg, timeout: timeout, vm: goja.New()}
	if err := rt.guard(func() error {
		_, err := rt.vm.RunProgram(prog)
		return err
	}); err != nil {
		return nil, domain.ValidationError("evaluate "+pkg, err)
	}

	jsonObj := rt.vm.Get("JSON").ToObject(rt.vm)
	rt.stringify, _ = goja.AssertFunction(jsonObj.Get("stringify"))
	rt.parse, _ = goja.AssertFunction(jsonObj.Get("parse"))

	val := rt.vm.Get(sourceVar)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, domain.ValidationError("script "+pkg+" defines no source object", nil)
	}
	obj := val.ToObject(rt.vm)

	var def definition
	if err := rt.export(obj, &def); err != nil {
		return nil, domain.ValidationError("read source object of "+pkg, err)
	}
	rt.cfg = scraper.Config{
		BaseURL:  def.BaseURL,
		Popular:  def.Popular,
		Latest:   def.Latest,
		Search:   def.Search,
		Detail:   def.Detail,
		Chapters: def.Chapters,
		Content:  def.Content,
		Headers:  def.Headers,
		Filters:  toDomainFilters(def.Filters),
	}
	for name, value := range def.Cookies {
		rt.cfg.Cookies = append(rt.cfg.Cookies, &http.Cookie{Name: name, Value: value})
	}

	if fn, ok := goja.AssertFunction(obj.Get("buildSearchRequest")); ok {
		rt.build = fn
		rt.cfg.BuildSearchRequest = rt.buildSearchRequest
	}
	return rt, nil
}

// guard runs fn with the interrupt timer armed.
func (rt *runtime) guard(fn func() error) error {
	timer := time.AfterFunc(rt.timeout, func() {
		rt.vm.Interrupt(fmt.Sprintf("script %s exceeded %s", rt.pkg, rt.timeout))
	})
	defer func() {
		timer.Stop()
		rt.vm.ClearInterrupt()
	}()
	return fn()
}

// export converts a script value to a Go value through JSON.
func (rt *runtime) export(v goja.Value, out any) error {
	var s goja.Value
	err := rt.guard(func() error {
		var err error
		s, err = rt.stringify(goja.Undefined(), v)
		return err
	})
	if err != nil {
		return err
	}
	if goja.IsUndefined(s) {
		return fmt.Errorf("value is not serialisable")
	}
	return json.Unmarshal([]byte(s.String()), out)
}

// value converts a Go value to a script value through JSON.
func (rt *runtime) value(in any) (goja.Value, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return rt.parse(goja.Undefined(), rt.vm.ToValue(string(data)))
}

func (rt *runtime) buildSearchRequest(query string, page int, filters []domain.Filter) (*driven.HTTPRequest, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.vm == nil {
		return nil, fmt.Errorf("script %s: %w", rt.pkg, domain.ErrNotFound)
	}

	jsFilters, err := rt.value(fromDomainFilters(filters))
	if err != nil {
		return nil, fmt.Errorf("script %s filters: %w", rt.pkg, err)
	}
	var res goja.Value
	err = rt.guard(func() error {
		var err error
		res, err = rt.build(goja.Undefined(), rt.vm.ToValue(query), rt.vm.ToValue(page), jsFilters)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("script %s buildSearchRequest: %w", rt.pkg, err)
	}

	var r request
	if err := rt.export(res, &r); err != nil {
		return nil, fmt.Errorf("script %s request: %w", rt.pkg, err)
	}
	return r.toHTTP()
}

func (rt *runtime) close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.vm = nil
	rt.build = nil
}
