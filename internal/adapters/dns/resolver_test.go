package dns

import (
	"context"
	"net"
	"testing"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

// startTestServer runs a UDP DNS server answering from fixed zones
func startTestServer(t *testing.T) string {
	t.Helper()

	mux := mdns.NewServeMux()
	mux.HandleFunc(".", func(w mdns.ResponseWriter, req *mdns.Msg) {
		m := new(mdns.Msg)
		m.SetReply(req)
		q := req.Question[0]

		switch {
		case q.Name == "example.com." && q.Qtype == mdns.TypeMX:
			m.Answer = append(m.Answer,
				&mdns.MX{Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeMX, Class: mdns.ClassINET, Ttl: 60}, Preference: 10, Mx: "mx1.example.com."},
				&mdns.MX{Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeMX, Class: mdns.ClassINET, Ttl: 60}, Preference: 20, Mx: "mx2.example.com."},
			)
		case q.Name == "example.com." && q.Qtype == mdns.TypeA:
			m.Answer = append(m.Answer,
				&mdns.A{Hdr: mdns.RR_Header{Name: q.Name, Rrtype: mdns.TypeA, Class: mdns.ClassINET, Ttl: 60}, A: net.IPv4(192, 0, 2, 1)},
			)
		case q.Name == "empty.example.":
			// NOERROR without answers
		case q.Name == "broken.example.":
			m.Rcode = mdns.RcodeServerFailure
		default:
			m.Rcode = mdns.RcodeNameError
		}
		_ = w.WriteMsg(m)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	server := &mdns.Server{PacketConn: pc, Handler: mux, NotifyStartedFunc: func() { close(started) }}
	go func() {
		_ = server.ActivateAndServe()
	}()
	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("test DNS server did not start")
	}
	return pc.LocalAddr().String()
}

func newTestResolver(t *testing.T) *Resolver {
	addr := startTestServer(t)
	return NewResolver(Config{Nameservers: []string{addr}, Timeout: time.Second}, zap.NewNop())
}

func TestResolver_LookupMX(t *testing.T) {
	r := newTestResolver(t)

	records, err := r.LookupMX(context.Background(), "example.com")

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "mx1.example.com", records[0].Host)
	assert.Equal(t, uint16(10), records[0].Pref)
	assert.Equal(t, "mx2.example.com", records[1].Host)
}

func TestResolver_LookupA(t *testing.T) {
	r := newTestResolver(t)

	ips, err := r.LookupA(context.Background(), "EXAMPLE.com.")

	require.NoError(t, err)
	require.Len(t, ips, 1)
	assert.Equal(t, "192.0.2.1", ips[0].String())
}

func TestResolver_Errors(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	_, err := r.LookupMX(ctx, "missing.example")
	assert.True(t, IsNotFound(err), "NXDOMAIN should map to ErrNotFound")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	_, err = r.LookupA(ctx, "empty.example")
	assert.True(t, IsNotFound(err), "empty answer should map to ErrNotFound")

	_, err = r.LookupA(ctx, "broken.example")
	assert.ErrorIs(t, err, ErrServFail)
}

func TestNewResolver_AddsDefaultPort(t *testing.T) {
	r := NewResolver(Config{Nameservers: []string{"192.0.2.53"}}, zap.NewNop())

	assert.Equal(t, []string{"192.0.2.53:53"}, r.config.Nameservers)
	assert.Equal(t, 2*time.Second, r.config.Timeout)
	assert.Equal(t, 1, r.config.Retries)
}
