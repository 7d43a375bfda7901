package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"emberlink/internal/core/domain"

	"go.uber.org/zap/zaptest"
)

func testSpec(id domain.ChannelID, kind domain.MediaKind) domain.ChannelSpec {
	return domain.ChannelSpec{ID: id, Kind: kind, Direction: domain.DirectionBidirectional}
}

// openLoopback opens a channel whose tx side points at a socket the test
// holds, and whose rx side binds an ephemeral port the test can write to.
func openLoopback(t *testing.T, id domain.ChannelID) (*udpChannel, *net.UDPConn, *UDPTransport) {
	t.Helper()

	sink, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sink.Close() })

	tr := NewUDPTransport("wlan0", map[domain.ChannelID]Ports{
		id: {Tx: sink.LocalAddr().(*net.UDPAddr).Port, Rx: 0},
	}, zaptest.NewLogger(t).Sugar())

	ch, err := tr.Open(testSpec(id, domain.MediaHeartbeat))
	if err != nil {
		t.Fatal(err)
	}
	uc := ch.(*udpChannel)
	t.Cleanup(func() { uc.Close() })
	return uc, sink, tr
}

func TestUDPChannel_SendReachesTxPort(t *testing.T) {
	ch, sink, _ := openLoopback(t, 10)

	if err := ch.Send([]byte("beat")); err != nil {
		t.Fatalf("send: %v", err)
	}

	sink.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 128)
	n, _, err := sink.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "beat" {
		t.Fatalf("want beat, got %q", buf[:n])
	}
}

func TestUDPChannel_ReceiveGetsRxPayload(t *testing.T) {
	ch, _, _ := openLoopback(t, 10)

	conn, err := net.DialUDP("udp", nil, ch.rx.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := ch.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("want payload, got %q", got)
	}
}

func TestUDPChannel_CloseUnblocksReceive(t *testing.T) {
	ch, _, _ := openLoopback(t, 10)

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	ch.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, domain.ErrChannelClosed) {
			t.Fatalf("want ErrChannelClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("receive did not unblock on close")
	}
}

func TestUDPChannel_CloseIsIdempotent(t *testing.T) {
	ch, _, _ := openLoopback(t, 10)
	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Close(); err != nil {
		t.Fatal(err)
	}
	if err := ch.Send([]byte("x")); !errors.Is(err, domain.ErrChannelClosed) {
		t.Fatalf("send after close: want ErrChannelClosed, got %v", err)
	}
}

func TestUDPTransport_DuplicateChannelIDRejected(t *testing.T) {
	_, _, tr := openLoopback(t, 10)

	_, err := tr.Open(testSpec(10, domain.MediaHeartbeat))
	if !errors.Is(err, domain.ErrDuplicateChannelID) {
		t.Fatalf("want ErrDuplicateChannelID, got %v", err)
	}

	_, err = tr.Open(testSpec(10, domain.MediaVideo))
	if !errors.Is(err, domain.ErrKindMismatch) {
		t.Fatalf("want ErrKindMismatch, got %v", err)
	}
}

func TestUDPTransport_ReopenAfterClose(t *testing.T) {
	ch, _, tr := openLoopback(t, 10)
	ch.Close()

	reopened, err := tr.Open(testSpec(10, domain.MediaHeartbeat))
	if err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	reopened.Close()
}

func TestUDPTransport_UnassignedChannelFails(t *testing.T) {
	tr := NewUDPTransport("wlan0", map[domain.ChannelID]Ports{}, zaptest.NewLogger(t).Sugar())
	if _, err := tr.Open(testSpec(99, domain.MediaTelemetry)); err == nil {
		t.Fatal("expected error for channel without port assignment")
	}
}
