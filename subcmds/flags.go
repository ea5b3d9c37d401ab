// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"
)

// ServerFlags configures the control-plane listener address for "run".
type ServerFlags struct {
	port int
	ip   string
}

func (sf *ServerFlags) SetFlags(fset *flag.FlagSet) {
	fset.IntVar(&sf.port, "listen-port", 10000, "TCP port number for the control plane api")
	fset.StringVar(&sf.ip, "listen-ip", "127.0.0.1", "TCP ip address for the control plane api")
}

func (sf *ServerFlags) Addr() *net.TCPAddr {
	return &net.TCPAddr{IP: net.ParseIP(sf.ip), Port: sf.port}
}

// ClientFlags configures where client commands (status, strategy, ...)
// reach a running daemon's control plane.
type ClientFlags struct {
	port        int
	host        string
	httpTimeout time.Duration
}

func (cf *ClientFlags) SetFlags(fset *flag.FlagSet) {
	fset.IntVar(&cf.port, "connect-port", 10000, "TCP port number for the control plane api")
	fset.StringVar(&cf.host, "connect-host", "127.0.0.1", "Hostname or IP address for the control plane api")
	fset.DurationVar(&cf.httpTimeout, "http-timeout", 30*time.Second, "http client timeout")
}

func (cf *ClientFlags) AddressURL() *url.URL {
	return &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cf.host, fmt.Sprintf("%d", cf.port)),
	}
}

func (cf *ClientFlags) HttpClient() *http.Client {
	return &http.Client{Timeout: cf.httpTimeout}
}

// Post performs a JSON request/response round trip against subpath on the
// daemon's control plane.
func Post[RESP, REQ any](ctx context.Context, cf *ClientFlags, subpath string, req *REQ) (*RESP, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	addrURL := cf.AddressURL()
	addrURL.Path = path.Join(addrURL.Path, subpath)
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, addrURL.String(), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	r.Header.Set("content-type", "application/json")

	resp, err := cf.HttpClient().Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http status code %d: %s", resp.StatusCode, data)
	}
	response := new(RESP)
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return nil, err
	}
	return response, nil
}
