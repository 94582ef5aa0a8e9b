package server

import "strings"

// Normalize turns a bare port into a listen address. Empty picks a free port;
// host:port is kept as is.
func Normalize(addr string) string {
	if addr == "" {
		return ":0"
	}
	if strings.Contains(addr, ":") {
		return addr
	}
	return ":" + addr
}
