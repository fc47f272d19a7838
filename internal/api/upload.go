package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/chatsync"
	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
)

// SendAttachment streams a multipart upload, reporting progress as the
// file body is consumed.
func (c *Client) SendAttachment(ctx context.Context, upload *chatsync.AttachmentUpload, progress chatsync.ProgressFunc) (*model.Message, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(writeUpload(mw, upload, progress))
	}()

	var msg model.Message
	err := c.doWith(ctx, c.uploads, "send_attachment", http.MethodPost, "/messages/attachment", pr, mw.FormDataContentType(), &msg, "message", "data")
	// Unblock the writer if the request ended before the body was drained.
	pr.CloseWithError(io.ErrClosedPipe)
	<-written
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func writeUpload(mw *multipart.Writer, upload *chatsync.AttachmentUpload, progress chatsync.ProgressFunc) error {
	fields := [][2]string{
		{"conversationId", upload.ConversationID},
		{"receiverId", upload.ReceiverID},
		{"content", upload.Content},
		{"tempId", upload.TempID},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(upload.Filename)))
	if upload.MIMEType != "" {
		h.Set("Content-Type", upload.MIMEType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	body := &progressReader{r: upload.Body, total: upload.Size, report: progress}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	if progress != nil {
		progress(100)
	}
	return mw.Close()
}

// progressReader reports the percentage of total consumed so far.
type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report chatsync.ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.report != nil && p.total > 0 && n > 0 {
		p.report(int(min(p.read*100/p.total, 99)))
	}
	return n, err
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
