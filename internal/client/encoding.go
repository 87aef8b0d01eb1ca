package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Encoding selects how a submission is put on the wire. Both carry the same
// contract; only multipart can carry an image.
type Encoding string

const (
	EncodingMultipart Encoding = "multipart"
	EncodingJSON      Encoding = "json"
)

const (
	multipartPath = "/ask_bengali_chem"
	jsonPath      = "/ask"
)

func (e Encoding) Valid() bool {
	return e == EncodingMultipart || e == EncodingJSON
}

func (e Encoding) path() string {
	if e == EncodingJSON {
		return jsonPath
	}
	return multipartPath
}

// payload is what a single submission sends, independent of encoding.
type payload struct {
	SessionID string
	Action    Action
	Question  string
	Image     *Attachment
}

type jsonRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
	Action    Action `json:"action"`
}

func (e Encoding) encode(p payload) (io.Reader, string, error) {
	if e == EncodingJSON {
		return encodeJSON(p)
	}
	return encodeMultipart(p)
}

func encodeJSON(p payload) (io.Reader, string, error) {
	body, err := json.Marshal(jsonRequest{
		SessionID: p.SessionID,
		Question:  p.Question,
		Action:    p.Action,
	})
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(body), "application/json", nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeMultipart(p payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if p.SessionID != "" {
		if err := w.WriteField("session_id", p.SessionID); err != nil {
			return nil, "", err
		}
	}
	if p.Question != "" {
		if err := w.WriteField("question_text", p.Question); err != nil {
			return nil, "", err
		}
	}
	if p.Image != nil && p.Action == ActionAsk {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image_file"; filename="%s"`, quoteEscaper.Replace(p.Image.Filename)))
		h.Set("Content-Type", p.Image.contentType())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(p.Image.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("action", string(p.Action)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
