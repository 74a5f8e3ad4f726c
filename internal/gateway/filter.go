package gateway

import (
	"net/http"
	"regexp"
)

// workingRequest is the mutable local copy filters apply to: the
// path-and-query, and the request headers (spec §4.2 "Filter
// application"). It is discarded (not the original request) until the
// pipeline commits it as the final rewrite.
type workingRequest struct {
	pathQuery string
	header    http.Header
}

// Filter is an in-place transformation applied to a workingRequest, in
// declared order (spec §4.2).
type Filter interface {
	Apply(w *workingRequest)
}

// rewritePathFilter replaces the first regex match in the current
// path+query with dest, expanding named captures of the form ${name}.
type rewritePathFilter struct {
	re   *regexp.Regexp
	dest string
}

func (f rewritePathFilter) Apply(w *workingRequest) {
	loc := f.re.FindStringSubmatchIndex(w.pathQuery)
	if loc == nil {
		return
	}
	expanded := f.re.ExpandString(nil, f.dest, w.pathQuery, loc)
	w.pathQuery = w.pathQuery[:loc[0]] + string(expanded) + w.pathQuery[loc[1]:]
}

// addRequestHeaderFilter appends a header, preserving any existing
// entries with the same name.
type addRequestHeaderFilter struct {
	name  string
	value string
}

func (f addRequestHeaderFilter) Apply(w *workingRequest) {
	w.header.Add(f.name, f.value)
}

// removeRequestHeaderFilter removes all entries with the given name.
type removeRequestHeaderFilter struct {
	name string
}

func (f removeRequestHeaderFilter) Apply(w *workingRequest) {
	w.header.Del(f.name)
}

func compileFilter(cfg FilterConfig) (Filter, error) {
	switch cfg.Kind {
	case "rewrite_path":
		re, err := regexp.Compile(cfg.Source)
		if err != nil {
			return nil, err
		}
		return rewritePathFilter{re: re, dest: cfg.Dest}, nil
	case "add_request_header":
		return addRequestHeaderFilter{name: cfg.HeaderName, value: cfg.HeaderValue}, nil
	case "remove_request_header":
		return removeRequestHeaderFilter{name: cfg.RemoveName}, nil
	default:
		return nil, errUnknownFilterKind(cfg.Kind)
	}
}

func newWorkingRequest(req *http.Request) *workingRequest {
	pathQuery := req.URL.Path
	if req.URL.RawQuery != "" {
		pathQuery += "?" + req.URL.RawQuery
	}
	header := req.Header.Clone()
	return &workingRequest{pathQuery: pathQuery, header: header}
}
