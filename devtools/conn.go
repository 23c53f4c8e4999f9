package devtools

import (
	"bytes"
	"context"
	"io"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// DefaultReadBufferSize and DefaultWriteBufferSize bound the websocket
// dialer's buffers, matching the teacher's conn.go defaults (PDFs can
// stream large base64 chunks through IO.read replies).
var (
	DefaultReadBufferSize  = 25 * 1024 * 1024
	DefaultWriteBufferSize = 10 * 1024 * 1024
)

// conn wraps a gorilla/websocket connection, reusing the easyjson
// lexer/writer across calls the same way the teacher's conn.go does to
// avoid a per-message allocation.
type conn struct {
	ws *websocket.Conn

	buf    bytes.Buffer
	lexer  jlexer.Lexer
	writer jwriter.Writer

	debugf func(string, ...interface{})
}

// dial opens a websocket connection to urlstr (a ws://... DevTools URL).
func dial(ctx context.Context, urlstr string) (*conn, error) {
	d := &websocket.Dialer{
		ReadBufferSize:  DefaultReadBufferSize,
		WriteBufferSize: DefaultWriteBufferSize,
	}
	ws, _, err := d.DialContext(ctx, urlstr, nil)
	if err != nil {
		return nil, err
	}
	return &conn{ws: ws}, nil
}

// read reads the next frame into msg.
func (c *conn) read(msg *cdproto.Message) error {
	typ, r, err := c.ws.NextReader()
	if err != nil {
		return err
	}
	if typ != websocket.TextMessage {
		return ErrProtocolParseError
	}

	c.buf.Reset()
	if _, err := c.buf.ReadFrom(r); err != nil {
		return err
	}
	buf := c.buf.Bytes()
	if c.debugf != nil {
		c.debugf("<- %s", buf)
	}

	c.lexer = jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&c.lexer)
	if err := c.lexer.Error(); err != nil {
		return ErrProtocolParseError
	}
	// The read buffer is reused across calls; copy the bytes the message
	// still references (Result is an easyjson.RawMessage aliasing buf).
	msg.Result = append([]byte{}, msg.Result...)
	return nil
}

// write writes msg as a single text frame.
func (c *conn) write(msg *cdproto.Message) error {
	w, err := c.ws.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	defer w.Close()

	c.writer = jwriter.Writer{}
	msg.MarshalEasyJSON(&c.writer)
	if err := c.writer.Error; err != nil {
		return err
	}
	if c.debugf != nil {
		buf, _ := c.writer.BuildBytes()
		c.debugf("-> %s", buf)
		_, err = w.Write(buf)
		return err
	}
	_, err = c.writer.DumpTo(w)
	return err
}

func (c *conn) Close() error {
	return c.ws.Close()
}

var _ io.Closer = (*conn)(nil)
