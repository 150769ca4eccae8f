package nobo

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSerial = "102000022334"

var fakeSync = []string{
	"H00",
	"H01 1 Living 1 22 18 1 -1",
	"H02 186170024143 0 Heater 0 1 -1 -1",
	"H03 1 Default 00000,06001,22000,00000,07001,00002,00004,00000,00001,00000,12001",
	"H04 1 0 0 -1 -1 0 -1",
	"H05 102000022334 MyHub 180 1 115 11123610_rev._1 20170101",
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
}

// fakeHub is a TCP server that speaks enough of the hub protocol for a
// session: it answers the handshake and replays a full refresh on G00.
type fakeHub struct {
	ln       net.Listener
	hello    string
	received chan string

	mu    sync.Mutex
	conns []net.Conn
}

func newFakeHub(t *testing.T, helloReply string) *fakeHub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeHub{
		ln:       ln,
		hello:    helloReply,
		received: make(chan string, 256),
	}
	t.Cleanup(f.close)
	go f.accept()
	return f
}

func (f *fakeHub) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func (f *fakeHub) accept() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()
		go f.serve(conn)
	}
}

func (f *fakeHub) serve(conn net.Conn) {
	for tokens := range Frames(conn) {
		select {
		case f.received <- strings.Join(tokens, " "):
		default:
		}
		switch tokens[0] {
		case "HELLO":
			writeFrames(conn, f.hello)
		case "HANDSHAKE":
			writeFrames(conn, "HANDSHAKE")
		case "G00":
			writeFrames(conn, fakeSync...)
		}
	}
}

// push writes frames to the most recent connection.
func (f *fakeHub) push(lines ...string) {
	f.mu.Lock()
	conn := f.conns[len(f.conns)-1]
	f.mu.Unlock()
	writeFrames(conn, lines...)
}

func (f *fakeHub) close() {
	f.ln.Close()
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Close()
	}
}

// expect waits until the hub has received want.
func (f *fakeHub) expect(t *testing.T, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.received:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("hub never received %q", want)
		}
	}
}

// next returns the next command other than a heartbeat.
func (f *fakeHub) next(t *testing.T) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-f.received:
			if got != string(CmdHandshake) {
				return got
			}
		case <-timeout:
			t.Fatal("hub received nothing")
			return ""
		}
	}
}

func writeFrames(conn net.Conn, lines ...string) {
	for _, l := range lines {
		conn.Write([]byte(l + "\r"))
	}
}

func newTestHub(t *testing.T, f *fakeHub, opts ...HubOption) *Hub {
	t.Helper()
	base := []HubOption{
		WithAddress("127.0.0.1"),
		WithPort(f.port()),
		WithClock(fixedClock),
		WithHandshakeTimeout(2 * time.Second),
	}
	h, err := NewHub(testSerial, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func connectTestHub(t *testing.T, f *fakeHub, opts ...HubOption) *Hub {
	t.Helper()
	h := newTestHub(t, f, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Connect(ctx))
	f.expect(t, "G00")
	return h
}

// waitFor reads notifications until one satisfies match.
func waitFor(t *testing.T, ch <-chan Notification, match func(Notification) bool) Notification {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n, ok := <-ch:
			require.True(t, ok, "subscription closed")
			if match(n) {
				return n
			}
		case <-timeout:
			t.Fatal("notification not received")
			return Notification{}
		}
	}
}

func TestHub_ConnectSyncsStore(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)

	assert.Equal(t, StateReady, h.State())

	zones := h.Store().Zones()
	require.Len(t, zones, 1)
	assert.Equal(t, "Living", zones[0].Name)
	assert.Len(t, h.Store().Components(), 1)
	assert.Len(t, h.Store().WeekProfiles(), 1)
	assert.Len(t, h.Store().Overrides(), 1)

	hub, ok := h.Store().HubInfo()
	require.True(t, ok)
	assert.Equal(t, "MyHub", hub.Name)
}

func TestHub_HandshakeSequence(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := newTestHub(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Connect(ctx))

	assert.Equal(t, "HELLO 1.1 102000022334 20240102030405", f.next(t))
	assert.Equal(t, "HANDSHAKE", <-f.received)
	assert.Equal(t, "G00", f.next(t))
}

func TestHub_ReadyNotification(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := newTestHub(t, f)
	notes, cancelSub := h.Subscribe(64)
	defer cancelSub()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Connect(ctx))

	n := waitFor(t, notes, func(n Notification) bool { return n.Kind == NotifyReady })
	assert.Equal(t, RespHubInfo, n.Message.Code())
}

func TestHub_ConnectTwice(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)

	err := h.Connect(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyConnected)
}

func TestHub_ConcurrentConnectOpensOneSession(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := newTestHub(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	for range 2 {
		go func() { errs <- h.Connect(ctx) }()
	}

	var ok, rejected int
	for range 2 {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyConnected):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, StateReady, h.State())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.conns, 1)
}

func TestHub_HandshakeRejected(t *testing.T) {
	f := newFakeHub(t, "REJECT 0")
	h := newTestHub(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.Connect(ctx)

	assert.ErrorIs(t, err, ErrNoHubReachable)
	assert.ErrorIs(t, err, ErrHandshakeFailed)
	assert.Equal(t, StateClosed, h.State())
}

func TestHub_StrictHandshakeVersionMismatch(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.0")
	h := newTestHub(t, f, WithStrictHandshake(true))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := h.Connect(ctx)

	assert.ErrorIs(t, err, ErrHandshakeFailed)
}

func TestHub_LenientHandshakeAcceptsOtherVersion(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.0")
	h := connectTestHub(t, f)

	assert.Equal(t, StateReady, h.State())
}

func TestHub_DiscoverySkipsFailingCandidate(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h, err := NewHub("334",
		WithPort(f.port()),
		WithClock(fixedClock),
		WithConnectTimeout(time.Second),
	)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	h.cfg.discover = func(context.Context) ([]DiscoveryResult, error) {
		return []DiscoveryResult{
			{IP: "127.0.0.2", Serial: "102000022"},
			{IP: "127.0.0.1", Serial: "102000022"},
		}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Connect(ctx))

	assert.Equal(t, "HELLO 1.1 102000022334 20240102030405", f.next(t))
	assert.Equal(t, StateReady, h.State())
}

func TestHub_DiscoveryFindsNothing(t *testing.T) {
	h, err := NewHub("")
	require.NoError(t, err)
	h.cfg.discover = func(context.Context) ([]DiscoveryResult, error) { return nil, nil }

	err = h.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoHubReachable)
	assert.Equal(t, StateClosed, h.State())
}

func TestHub_DiscoveryError(t *testing.T) {
	h, err := NewHub("")
	require.NoError(t, err)
	boom := errors.New("no network")
	h.cfg.discover = func(context.Context) ([]DiscoveryResult, error) { return nil, boom }

	err = h.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoHubReachable)
	assert.ErrorIs(t, err, boom)
}

func TestResolveSerial(t *testing.T) {
	cases := []struct {
		beacon, configured string
		want               string
		ok                 bool
	}{
		{"102000022", "", "102000022", true},
		{"102000022", "334", "102000022334", true},
		{"102000022", "102000022334", "102000022334", true},
		{"102000099", "102000022334", "102000022334", false},
		{"102000022334", "334", "102000022334", true},
	}
	for _, tc := range cases {
		got, ok := resolveSerial(tc.beacon, tc.configured)
		assert.Equal(t, tc.ok, ok, "%s/%s", tc.beacon, tc.configured)
		if tc.ok {
			assert.Equal(t, tc.want, got, "%s/%s", tc.beacon, tc.configured)
		}
	}
}

func TestHub_SetZoneTemperatures(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)

	require.NoError(t, h.SetZoneTemperatures(context.Background(), "1", 23, 17))
	assert.Equal(t, "U00 1 Living 1 23 17 1 -1", f.next(t))

	// The store changes only when the hub confirms.
	z, _ := h.Store().Zone("1")
	assert.Equal(t, 22, z.ComfortC)

	f.push("V00 1 Living 1 23 17 1 -1")
	assert.Eventually(t, func() bool {
		z, _ := h.Store().Zone("1")
		return z.ComfortC == 23
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_InvalidCommandSendsNothing(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	ctx := context.Background()

	assert.ErrorIs(t, h.SetZoneTemperatures(ctx, "1", 16, 20), ErrValidation)
	assert.ErrorIs(t, h.SetZoneTemperatures(ctx, "1", 31, 20), ErrValidation)
	assert.ErrorIs(t, h.UpdateZone(ctx, "9", ZonePatch{}), ErrUnknownZone)
	assert.ErrorIs(t, h.CreateOverride(ctx, OverrideRequest{Mode: "7"}), ErrValidation)

	require.NoError(t, h.Refresh(ctx))
	assert.Equal(t, "G00", f.next(t))
}

func TestHub_CreateOverride(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)

	err := h.CreateOverride(context.Background(), OverrideRequest{
		Mode:       OverrideAway,
		Type:       OverrideConstant,
		TargetType: TargetGlobal,
	})
	require.NoError(t, err)
	assert.Equal(t, "A03 1 3 3 -1 -1 0 -1", f.next(t))
}

func TestHub_WeekProfileCommands(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	ctx := context.Background()

	w, err := BuildWeekProfile("Mornings", Timetable{
		time.Monday: {{Time: "06:00", Mode: ModeComfort}},
	})
	require.NoError(t, err)

	require.NoError(t, h.AddWeekProfile(ctx, w))
	assert.Equal(t, "A02 0 Mornings 00000,06001,00000,00000,00000,00000,00000,00000", f.next(t))

	w.ID = "1"
	require.NoError(t, h.UpdateWeekProfile(ctx, w))
	assert.Equal(t, "U02 1 Mornings 00000,06001,00000,00000,00000,00000,00000,00000", f.next(t))

	w.ID = "5"
	assert.ErrorIs(t, h.UpdateWeekProfile(ctx, w), ErrValidation)

	require.NoError(t, h.RemoveWeekProfile(ctx, "1"))
	assert.Equal(t, "R02 1", f.next(t))
}

func TestHub_SendNotConnected(t *testing.T) {
	h, err := NewHub(testSerial, WithAddress("127.0.0.1"))
	require.NoError(t, err)

	err = h.Send(context.Background(), CmdGetAllInfo)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestHub_UnknownCodeEndsSession(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	done := h.Done()

	f.push("X99 something")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.ErrorIs(t, h.Err(), ErrUnknownCode)
	assert.Equal(t, StateClosed, h.State())
	assert.ErrorIs(t, h.Send(context.Background(), CmdGetAllInfo), ErrNotConnected)
}

func TestHub_InvalidMessageIsDropped(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	notes, cancelSub := h.Subscribe(64)
	defer cancelSub()

	f.push("V00 1 Living 1 16 20 1 -1", "Y02 186170024143 21.5")

	n := waitFor(t, notes, func(n Notification) bool { return n.Kind == NotifyError })
	assert.ErrorIs(t, n.Err, ErrValidation)
	assert.Equal(t, RespUpdateZone, n.Message.Code())

	n = waitFor(t, notes, func(n Notification) bool { return n.Kind == NotifyUpdate })
	assert.Equal(t, RespComponentTemperature, n.Message.Code(), "no update for the dropped zone")

	temp, ok := h.Store().CurrentTemperature("1")
	require.True(t, ok)
	assert.Equal(t, "21.5", temp)
	z, _ := h.Store().Zone("1")
	assert.Equal(t, 22, z.ComfortC)
	assert.Equal(t, StateReady, h.State())
}

func TestHub_HubErrorNotification(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	notes, cancelSub := h.Subscribe(64)
	defer cancelSub()

	f.push("E00 3 zone does not exist")

	n := waitFor(t, notes, func(n Notification) bool { return n.Kind == NotifyError })
	var hubErr *HubError
	require.ErrorAs(t, n.Err, &hubErr)
	assert.Equal(t, "3", hubErr.Code)
	assert.Equal(t, "zone does not exist", hubErr.Message)
}

func TestHub_InternetAccessNotification(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	notes, cancelSub := h.Subscribe(64)
	defer cancelSub()

	f.push("V06 1 abcdef")

	n := waitFor(t, notes, func(n Notification) bool { return n.Kind == NotifyInternetAccess })
	assert.Equal(t, InternetAccess{Enabled: true, Key: "abcdef"}, n.InternetAccess)
}

func TestHub_Heartbeat(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	connectTestHub(t, f, WithHeartbeatInterval(50*time.Millisecond))

	f.expect(t, "HANDSHAKE")
	f.expect(t, "HANDSHAKE")
}

func TestHub_SendToStalledHubTimesOut(t *testing.T) {
	h, err := NewHub(testSerial, WithAddress("127.0.0.1"))
	require.NoError(t, err)
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()
	h.mu.Lock()
	h.conn = client
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = h.Send(ctx, CmdGetAllInfo)

	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestHub_HeartbeatToStalledHubReleasesWriter(t *testing.T) {
	h, err := NewHub(testSerial, WithAddress("127.0.0.1"), WithHeartbeatInterval(30*time.Millisecond))
	require.NoError(t, err)
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := &session{conn: client, done: make(chan struct{})}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		h.heartbeat(s)
	}()

	time.Sleep(100 * time.Millisecond)
	close(s.done)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("heartbeat stuck writing to a stalled connection")
	}
	assert.True(t, h.writeMu.TryLock())
	h.writeMu.Unlock()
}

func TestHub_ClosePublishesClosed(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	notes, cancelSub := h.Subscribe(64)
	defer cancelSub()

	require.NoError(t, h.Close())

	n := waitFor(t, notes, func(n Notification) bool { return n.Kind == NotifyClosed })
	assert.NoError(t, n.Err)
	assert.NoError(t, h.Err())
	assert.Equal(t, StateClosed, h.State())
	assert.NoError(t, h.Close())
}

func TestHub_ReconnectAfterClose(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	require.NoError(t, h.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Connect(ctx))
	assert.Equal(t, StateReady, h.State())
	assert.Len(t, h.Store().Zones(), 1)
}

func TestHub_ServerHangupEndsSession(t *testing.T) {
	f := newFakeHub(t, "HELLO 1.1")
	h := connectTestHub(t, f)
	done := h.Done()

	f.close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Equal(t, StateClosed, h.State())
}
