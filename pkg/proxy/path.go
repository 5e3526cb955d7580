package proxy

import (
	"strings"
)

// NFTypeFromPath derives the target NF type from a 3GPP SBI request
// path of the form /n<type>-<service>/<version>/..., e.g.
// /namf-comm/v1/ue-contexts → AMF.
func NFTypeFromPath(path string) (string, error) {
	segments := strings.Split(path, "/")
	if len(segments) < 2 {
		return "", NewBadRequest("request path does not encode an NF type")
	}

	service := segments[1]
	if !strings.HasPrefix(service, "n") {
		return "", NewBadRequest("service segment must follow the n<type>-<service> convention")
	}

	nfType := strings.TrimPrefix(strings.SplitN(service, "-", 2)[0], "n")
	if nfType == "" {
		return "", NewBadRequest("service segment does not encode an NF type")
	}

	return strings.ToUpper(nfType), nil
}
