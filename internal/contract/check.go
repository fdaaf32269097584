package contract

import (
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

var (
	ErrUndeclaredStatus    = errors.New("contract: undeclared status code")
	ErrUndeclaredMediaType = errors.New("contract: undeclared media type")
	ErrContentMismatch     = errors.New("contract: contentType and content must be both present or both absent")
	ErrMissingRequestBody  = errors.New("contract: required request body is missing")
)

// CheckRequestBody validates an inbound body against the declared request
// body and returns the matched media entry. A nil Media with a nil error means
// the request legitimately carries no body.
func (o *Operation) CheckRequestBody(contentType string, present bool) (*Media, error) {
	if !present {
		if o.RequestBody != nil && o.RequestBody.Required {
			return nil, ErrMissingRequestBody
		}
		return nil, nil
	}
	if o.RequestBody == nil {
		return nil, fmt.Errorf("%w: %s %s declares no request body", ErrUndeclaredMediaType, o.Method, o.Path)
	}
	m, ok := MatchMedia(o.RequestBody.Media, contentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUndeclaredMediaType, contentType)
	}
	return m, nil
}

// CheckResponse validates a handler response against the declared variants.
// contentType and content must be both present or both absent; the status
// code must match a variant exactly, through an NXX range or via default.
func (o *Operation) CheckResponse(code int, contentType string, hasContent bool) (*Variant, *Media, error) {
	if (contentType != "") != hasContent {
		return nil, nil, ErrContentMismatch
	}
	v := o.Variant(code)
	if v == nil {
		return nil, nil, fmt.Errorf("%w: %d for %s %s", ErrUndeclaredStatus, code, o.Method, o.Path)
	}
	if contentType == "" {
		if len(v.Media) > 0 {
			return nil, nil, fmt.Errorf("%w: response %s declares content", ErrContentMismatch, v.HTTPCode)
		}
		return v, nil, nil
	}
	m, ok := MatchMedia(v.Media, contentType)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q for response %s", ErrUndeclaredMediaType, contentType, v.HTTPCode)
	}
	return v, m, nil
}

// Variant picks the response variant for code: an exact match first, then a
// range such as 4XX, then default.
func (o *Operation) Variant(code int) *Variant {
	exact := strconv.Itoa(code)
	rng := strconv.Itoa(code/100) + "XX"
	var ranged, fallback *Variant
	for i := range o.Responses {
		v := &o.Responses[i]
		switch strings.ToUpper(v.HTTPCode) {
		case exact:
			return v
		case rng:
			ranged = v
		case "DEFAULT":
			fallback = v
		}
	}
	if ranged != nil {
		return ranged
	}
	return fallback
}

// MatchMedia finds the declared media entry for contentType. Parameters such
// as charset are ignored; declared wildcards (text/*, */*) match.
func MatchMedia(media []Media, contentType string) (*Media, bool) {
	want := baseMediaType(contentType)
	if want == "" {
		return nil, false
	}
	for i := range media {
		if baseMediaType(media[i].ContentType) == want {
			return &media[i], true
		}
	}
	for i := range media {
		d := baseMediaType(media[i].ContentType)
		if d == "*/*" || (strings.HasSuffix(d, "/*") && strings.HasPrefix(want, strings.TrimSuffix(d, "*"))) {
			return &media[i], true
		}
	}
	return nil, false
}

func baseMediaType(s string) string {
	mt, _, err := mime.ParseMediaType(s)
	if err != nil {
		mt, _, _ = strings.Cut(s, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
