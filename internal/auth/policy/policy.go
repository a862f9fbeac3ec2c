// Package policy decides whether a caller may invoke an operation. It is a
// pure function over capability sets; transport layers call it before
// reaching the services, and the services themselves never consult it.
package policy

// HasCapabilities reports whether every required capability is present in
// the caller's set. An empty requirement always passes.
func HasCapabilities(callerCaps, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(callerCaps))
	for _, c := range callerCaps {
		have[c] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}
