// RemoteSource is a Data Source backed by a small request/response
// protocol over a websocket, standing in for reading process memory:
// generalized from the teacher's websocket client
// (internal/network/websocket.go's WebSocketConn/readMessages) from a
// security-probe transport to a remote-byte-window transport.
package source

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// remoteRequest/remoteResponse are the wire messages exchanged with a
// remote byte-provider process: "read N bytes at offset" /
// "here are the bytes (or an error)".
type remoteRequest struct {
	Op     string `json:"op"`
	Offset uint64 `json:"offset"`
	Length int    `json:"length,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

type remoteResponse struct {
	OK    bool   `json:"ok"`
	Data  []byte `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// RemoteInfo is the handshake payload a remote process reports once on
// connect: its total size, base address, and whether it accepts
// writes.
type RemoteInfo struct {
	Size        uint64 `json:"size"`
	BaseAddress uint64 `json:"base_address"`
	Writable    bool   `json:"writable"`
}

// RemoteSource reads (and optionally writes) bytes from a process
// reachable over a websocket connection, one request per ReadAt/WriteAt
// call, serialized by mu the way the teacher's WebSocketConn guards
// concurrent use of a single connection.
type RemoteSource struct {
	conn *websocket.Conn
	info RemoteInfo
	mu   sync.Mutex
	timeout time.Duration
}

// DialRemote connects to url and performs the handshake, returning a
// ready-to-use RemoteSource.
func DialRemote(url string) (*RemoteSource, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to remote data source")
	}
	var info RemoteInfo
	if err := conn.ReadJSON(&info); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "reading remote data source handshake")
	}
	return &RemoteSource{conn: conn, info: info, timeout: 10 * time.Second}, nil
}

func (r *RemoteSource) Size() uint64        { return r.info.Size }
func (r *RemoteSource) BaseAddress() uint64 { return r.info.BaseAddress }
func (r *RemoteSource) Writable() bool      { return r.info.Writable }
func (r *RemoteSource) Close() error        { return r.conn.Close() }

func (r *RemoteSource) roundTrip(req remoteRequest) (remoteResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conn.SetWriteDeadline(time.Now().Add(r.timeout))
	if err := r.conn.WriteJSON(req); err != nil {
		return remoteResponse{}, errors.Wrap(err, "sending remote data source request")
	}
	r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	var resp remoteResponse
	if err := r.conn.ReadJSON(&resp); err != nil {
		return remoteResponse{}, errors.Wrap(err, "reading remote data source response")
	}
	return resp, nil
}

func (r *RemoteSource) ReadAt(offset uint64, buf []byte) error {
	if err := checkBounds(r, offset, len(buf)); err != nil {
		return err
	}
	resp, err := r.roundTrip(remoteRequest{Op: "read", Offset: offset, Length: len(buf)})
	if err != nil {
		return err
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}
	if len(resp.Data) != len(buf) {
		return errors.Errorf("remote data source returned %d bytes, wanted %d", len(resp.Data), len(buf))
	}
	copy(buf, resp.Data)
	return nil
}

func (r *RemoteSource) WriteAt(offset uint64, buf []byte) error {
	if !r.Writable() {
		return OutOfBounds(r, offset, len(buf))
	}
	if err := checkBounds(r, offset, len(buf)); err != nil {
		return err
	}
	resp, err := r.roundTrip(remoteRequest{Op: "write", Offset: offset, Data: buf})
	if err != nil {
		return err
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}
	return nil
}
