package gateway

import (
	"net/http"
	"regexp"
	"strings"
)

// Predicate gates whether a route applies to a request (spec §4.2).
type Predicate interface {
	Matches(req *http.Request) bool
}

// hostPredicate is true iff the request's URI-authority or Host header
// equals the configured host exactly.
type hostPredicate struct {
	host string
}

func (p hostPredicate) Matches(req *http.Request) bool {
	if req.URL.Host != "" && req.URL.Host == p.host {
		return true
	}
	return req.Host == p.host
}

// pathPredicate is true iff the regex matches against the request path
// (not path+query).
type pathPredicate struct {
	re *regexp.Regexp
}

func (p pathPredicate) Matches(req *http.Request) bool {
	return p.re.MatchString(req.URL.Path)
}

// methodPredicate is true iff the configured method equals the request
// method, case-insensitively.
type methodPredicate struct {
	method string
}

func (p methodPredicate) Matches(req *http.Request) bool {
	return strings.EqualFold(p.method, req.Method)
}

func compilePredicate(cfg PredicateConfig) (Predicate, error) {
	switch cfg.Kind {
	case "host":
		return hostPredicate{host: cfg.Value}, nil
	case "path":
		re, err := regexp.Compile(cfg.Value)
		if err != nil {
			return nil, err
		}
		return pathPredicate{re: re}, nil
	case "method":
		return methodPredicate{method: cfg.Value}, nil
	default:
		return nil, errUnknownPredicateKind(cfg.Kind)
	}
}
