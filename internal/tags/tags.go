package tags

import (
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Tag keys stamped on every endpoint and deployment this tool creates.
const (
	KeyManaged  = "x-endpointsentry-managed"
	KeyKind     = "x-endpointsentry-kind"
	KeyRunID    = "x-endpointsentry-run-id"
	KeyCreated  = "x-endpointsentry-created"
	KeyBaseName = "x-endpointsentry-base-name"
)

// Managed defines the schema for the tags stored on a created resource.
// It is used by the sweep workflow to find resources this tool owns and to
// decide whether they are old enough to be cleaned up.
type Managed struct {
	// Managed indicates if this resource is owned by EndpointSentry.
	// If false, the sweep workflow will ignore it.
	Managed bool `json:"x-endpointsentry-managed"`

	// Kind is "endpoint" or "deployment".
	Kind string `json:"x-endpointsentry-kind"`

	// RunID links every resource created by one deploy run.
	RunID string `json:"x-endpointsentry-run-id"`

	// Created is when the deploy run started.
	Created time.Time `json:"x-endpointsentry-created"`

	// BaseName is the base the resource name was generated from. Retries
	// rename the resource, this stays the same.
	BaseName string `json:"x-endpointsentry-base-name"`
}

// ToAzureTags serializes the managed tags into a string map suitable for ARM.
// Extra user tags are copied first so the managed keys always win.
func (m Managed) ToAzureTags(extra map[string]string) map[string]string {
	out := make(map[string]string, len(extra)+5)
	for k, v := range extra {
		out[k] = v
	}

	var created string
	if !m.Created.IsZero() {
		created = m.Created.UTC().Format(time.RFC3339)
	}

	out[KeyManaged] = strconv.FormatBool(m.Managed)
	out[KeyKind] = m.Kind
	out[KeyRunID] = m.RunID
	out[KeyCreated] = created
	out[KeyBaseName] = m.BaseName
	return out
}

// Parse is a generic helper to unmarshal resource tags into a strongly-typed
// struct using JSON tags. It uses weak typing to handle string-to-bool
// conversions and RFC3339 timestamps. Unknown keys are ignored.
func Parse[T any](tags map[string]string) (*T, error) {
	var result T

	config := &mapstructure.DecoderConfig{
		Result:           &result,
		WeaklyTypedInput: true,
		TagName:          "json",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncType(emptyTimeHook),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(tags); err != nil {
		return nil, err
	}

	return &result, nil
}

// ParseManaged decodes the managed tags of a resource. Resources without
// the managed tag decode to a zero Managed.
func ParseManaged(tags map[string]string) (Managed, error) {
	m, err := Parse[Managed](tags)
	if err != nil {
		return Managed{}, err
	}
	return *m, nil
}

var timeType = reflect.TypeOf(time.Time{})

// emptyTimeHook lets an empty string decode to the zero time.
func emptyTimeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if s, ok := data.(string); ok && s == "" && to == timeType {
		return time.Time{}, nil
	}
	return data, nil
}
