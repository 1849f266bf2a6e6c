// Package resp encodes and decodes the subset of the Redis Serialization
// Protocol (RESP) needed by the mock server: requests are read as arrays of
// bulk strings, replies are written from Go values.
//
// See http://redis.io/topics/protocol for the reference.
package resp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
)

var (
	// ErrInvalidRequest is returned by ReadRequest if the request is not a
	// non-empty array of bulk strings.
	ErrInvalidRequest = errors.New("resp: invalid request")

	// ErrMissingCRLF is returned if a line is not terminated by \r\n.
	ErrMissingCRLF = errors.New("resp: missing CRLF")
)

// Error is encoded as a RESP error (e.g. "-TRYAGAIN mock\r\n").
type Error string

// SimpleString is encoded as a RESP simple string (e.g. "+OK\r\n").
type SimpleString string

// Array is encoded as a RESP array, each element being encoded in turn.
type Array []interface{}

// ReadRequest reads a single command sent by a client. It returns the
// command name followed by its arguments.
func ReadRequest(br *bufio.Reader) ([]string, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if len(line) < 2 || line[0] != '*' {
		return nil, ErrInvalidRequest
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 1 {
		return nil, ErrInvalidRequest
	}

	req := make([]string, n)
	for i := range req {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if len(line) < 2 || line[0] != '$' {
			return nil, ErrInvalidRequest
		}
		size, err := strconv.Atoi(line[1:])
		if err != nil || size < 0 {
			return nil, ErrInvalidRequest
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return nil, ErrMissingCRLF
		}
		req[i] = string(buf[:size])
	}
	return req, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return "", ErrMissingCRLF
	}
	return line[:len(line)-2], nil
}

// Encode writes v to w in the RESP format. Go strings and byte slices are
// encoded as bulk strings, integers as RESP integers and nil as the nil
// bulk string.
func Encode(w io.Writer, v interface{}) error {
	bw := bufio.NewWriter(w)
	if err := encode(bw, v); err != nil {
		return err
	}
	return bw.Flush()
}

func encode(w *bufio.Writer, v interface{}) error {
	var err error
	switch v := v.(type) {
	case nil:
		_, err = w.WriteString("$-1\r\n")
	case SimpleString:
		_, err = fmt.Fprintf(w, "+%s\r\n", v)
	case Error:
		_, err = fmt.Fprintf(w, "-%s\r\n", v)
	case int:
		_, err = fmt.Fprintf(w, ":%d\r\n", v)
	case int64:
		_, err = fmt.Fprintf(w, ":%d\r\n", v)
	case bool:
		if v {
			_, err = w.WriteString(":1\r\n")
		} else {
			_, err = w.WriteString(":0\r\n")
		}
	case string:
		_, err = fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
	case []byte:
		_, err = fmt.Fprintf(w, "$%d\r\n%s\r\n", len(v), v)
	case Array:
		if v == nil {
			_, err = w.WriteString("*-1\r\n")
			break
		}
		if _, err = fmt.Fprintf(w, "*%d\r\n", len(v)); err != nil {
			return err
		}
		for _, el := range v {
			if err = encode(w, el); err != nil {
				return err
			}
		}
	default:
		err = fmt.Errorf("resp: cannot encode value of type %T", v)
	}
	return err
}
