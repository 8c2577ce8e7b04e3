package validation

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// formatChecker validates a canonical string value against one named
// format from §4.1's table. It returns true when value satisfies the
// format.
type formatChecker func(value string) bool

var formatCheckers = map[string]formatChecker{
	"uuid":      checkUUID,
	"date":      checkDate,
	"date-time": checkDateTime,
	"email":     checkEmail,
	"uri":       checkURI,
	"url":       checkURI,
	"ipv4":      checkIPv4,
	"ipv6":      checkIPv6,
	"hostname":  checkHostname,
	"int32":     checkInt32,
	"int64":     checkInt64,
}

func checkUUID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func checkDate(v string) bool {
	return dateRe.MatchString(v)
}

var dateTimeRe = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`,
)

func checkDateTime(v string) bool {
	return dateTimeRe.MatchString(v)
}

func checkEmail(v string) bool {
	at := strings.LastIndexByte(v, '@')
	if at <= 0 || at == len(v)-1 {
		return false
	}
	local, domain := v[:at], v[at+1:]
	if local == "" || domain == "" {
		return false
	}
	return strings.Contains(domain, ".")
}

func checkURI(v string) bool {
	u, err := url.ParseRequestURI(v)
	if err != nil {
		return false
	}
	return u.IsAbs()
}

var ipv4Re = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

func checkIPv4(v string) bool {
	m := ipv4Re.FindStringSubmatch(v)
	if m == nil {
		return false
	}
	for _, octet := range m[1:] {
		n, err := strconv.Atoi(octet)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

func checkIPv6(v string) bool {
	if strings.Contains(v, ".") {
		// Reject mixed IPv4-mapped forms; §4.1 scopes ipv6 to canonical
		// IPv6 textual form.
		return false
	}
	return net.ParseIP(v) != nil && strings.Contains(v, ":")
}

var hostnameLabelRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

func checkHostname(v string) bool {
	if len(v) == 0 || len(v) > 253 {
		return false
	}
	for _, label := range strings.Split(v, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if !hostnameLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}

func checkInt32(v string) bool {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false
	}
	return n >= -2147483648 && n <= 2147483647
}

func checkInt64(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}
