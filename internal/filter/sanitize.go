package filter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yourorg/featuregen/internal/config"
)

// SanitizeConfig is an alias of config.SanitizeConfig.
type SanitizeConfig = config.SanitizeConfig

// Redactor masks credentials in outbound request logs and audit text.
type Redactor struct {
	headers     map[string]struct{}
	fields      map[string]struct{}
	replacement string
}

// NewRedactor builds a Redactor from cfg.
func NewRedactor(cfg SanitizeConfig) *Redactor {
	replacement := cfg.Replacement
	if replacement == "" {
		replacement = "***REDACTED***"
	}
	return &Redactor{
		headers:     toLowerSet(cfg.Headers),
		fields:      toLowerSet(cfg.BodyFields),
		replacement: replacement,
	}
}

// Replacement returns the mask text.
func (r *Redactor) Replacement() string {
	return r.replacement
}

// Header returns value, or the mask when name is a sensitive header.
func (r *Redactor) Header(name, value string) string {
	if _, ok := r.headers[strings.ToLower(name)]; ok {
		return r.replacement
	}
	return value
}

// Headers flattens h and redacts sensitive entries.
func (r *Redactor) Headers(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	flat := make(map[string]string, len(h))
	for k, vs := range h {
		flat[k] = strings.Join(vs, ", ")
	}
	return sanitizeHeaderMap(flat, r.headers, r.replacement)
}

// Body redacts sensitive fields of a JSON body; other text is returned as is.
func (r *Redactor) Body(body string) string {
	return sanitizeBody(body, r.fields, r.replacement)
}

// Secret masks a non-empty credential.
func (r *Redactor) Secret(s string) string {
	if s == "" {
		return s
	}
	return r.replacement
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func sanitizeHeaderMap(in map[string]string, set map[string]struct{}, replacement string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if _, ok := set[strings.ToLower(k)]; ok {
			out[k] = replacement
			continue
		}
		out[k] = v
	}
	return out
}

func sanitizeBody(body string, set map[string]struct{}, replacement string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	var v interface{}
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	v = sanitizeJSONValue(v, set, replacement)
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return string(out)
}

func sanitizeJSONValue(v interface{}, set map[string]struct{}, replacement string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			if _, ok := set[strings.ToLower(k)]; ok {
				val[k] = replacement
				continue
			}
			val[k] = sanitizeJSONValue(v2, set, replacement)
		}
		return val
	case []interface{}:
		for i := range val {
			val[i] = sanitizeJSONValue(val[i], set, replacement)
		}
		return val
	default:
		return val
	}
}
