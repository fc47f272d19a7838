package chatsync

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/logger"
	"github.com/ahanafabid01/Next-Youth-sub001/pkg/metrics"
)

// Draft is a message the user submitted.
type Draft struct {
	ConversationID string
	// ReceiverID defaults to the conversation's other participant.
	ReceiverID string
	Content    string
	Attachment *DraftAttachment
}

// DraftAttachment is a file chosen for upload.
type DraftAttachment struct {
	Filename string
	MIMEType string
	Size     int64
	Body     io.Reader
	// PreviewHandle is a handle from Sender.Preview, if the UI already
	// shows a preview. A new one is issued otherwise.
	PreviewHandle string
}

// PendingSend tracks one message from provisional insert to confirmation.
type PendingSend struct {
	TempID string

	progress chan int
	done     chan struct{}
	last     int
	once     sync.Once
	msg      model.Message
	err      error
}

func newPendingSend(tempID string) *PendingSend {
	return &PendingSend{
		TempID:   tempID,
		progress: make(chan int, 101),
		done:     make(chan struct{}),
		last:     -1,
	}
}

// Done is closed once the send is confirmed or failed.
func (p *PendingSend) Done() <-chan struct{} {
	return p.done
}

// Progress yields upload percentages in increasing order and is closed when
// the send finishes. Text messages report nothing.
func (p *PendingSend) Progress() <-chan int {
	return p.progress
}

// Wait blocks until the send finishes or ctx is done.
func (p *PendingSend) Wait(ctx context.Context) (model.Message, error) {
	select {
	case <-p.done:
		return p.msg, p.err
	case <-ctx.Done():
		return model.Message{}, ctx.Err()
	}
}

// report is called from the single upload goroutine only.
func (p *PendingSend) report(percent int) bool {
	percent = min(max(percent, 0), 100)
	if percent <= p.last {
		return false
	}
	p.last = percent
	select {
	case p.progress <- percent:
	default:
	}
	return true
}

func (p *PendingSend) resolve(msg model.Message, err error) {
	p.once.Do(func() {
		p.msg = msg
		p.err = err
		close(p.progress)
		close(p.done)
	})
}

const resyncTimeout = 15 * time.Second

// SenderOptions bounds sends.
type SenderOptions struct {
	MaxAttachmentBytes int64
	// SendTimeout bounds the network leg of each send.
	SendTimeout time.Duration
}

// Sender runs the optimistic send pipeline: validate, insert a provisional
// entry, persist over REST, then confirm or roll back.
type Sender struct {
	backend  Backend
	store    *Store
	timeline *Timeline
	realtime Realtime
	previews *PreviewRegistry
	self     model.UserRef
	opts     SenderOptions
	notify   func(Change)
	logger   *logger.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// NewSender wires the pipeline.
func NewSender(backend Backend, store *Store, timeline *Timeline, rt Realtime, self model.UserRef, opts SenderOptions, notify func(Change), log *logger.Logger) *Sender {
	if opts.MaxAttachmentBytes <= 0 {
		opts.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 2 * time.Minute
	}
	if notify == nil {
		notify = func(Change) {}
	}
	return &Sender{
		backend:  backend,
		store:    store,
		timeline: timeline,
		realtime: rt,
		previews: NewPreviewRegistry(),
		self:     self,
		opts:     opts,
		notify:   notify,
		logger:   log.Named("sender"),
		now:      time.Now,
	}
}

// Previews exposes the preview handle registry.
func (s *Sender) Previews() *PreviewRegistry {
	return s.previews
}

// Preview issues a local preview handle for a file the user picked.
func (s *Sender) Preview(filename string) string {
	return s.previews.Create(filename)
}

// CancelPreview releases a preview the user discarded before sending.
func (s *Sender) CancelPreview(handle string) bool {
	return s.previews.Release(handle)
}

// Send validates d and inserts a provisional message before returning. The
// REST call runs in the background on a context detached from ctx and
// bounded by the send timeout; its outcome is reported through the
// returned PendingSend.
func (s *Sender) Send(ctx context.Context, d Draft) (*PendingSend, error) {
	d.Content = strings.TrimSpace(d.Content)
	if d.Content == "" && d.Attachment == nil {
		return nil, userError("send message", "Message cannot be empty", ErrEmptyMessage)
	}
	if a := d.Attachment; a != nil {
		if err := ValidateAttachment(a.MIMEType, a.Size, s.opts.MaxAttachmentBytes); err != nil {
			return nil, err
		}
	}

	conv, ok := s.store.Get(d.ConversationID)
	if !ok {
		return nil, userError("send message", "Conversation not found", ErrConversationNotFound)
	}
	switch {
	case d.ReceiverID == "":
		d.ReceiverID = conv.Peer(s.self.ID).ID
	case d.ReceiverID == s.self.ID || !conv.HasParticipant(d.ReceiverID):
		return nil, userError("send message", "Recipient is not part of this conversation", ErrInvalidRecipient)
	}

	tempID := "temp-" + uuid.NewString()
	provisional := model.Message{
		TempID:         tempID,
		ConversationID: d.ConversationID,
		Sender:         s.self,
		ReceiverID:     d.ReceiverID,
		Content:        d.Content,
		CreatedAt:      s.now(),
		IsTemp:         true,
	}

	var handle string
	if a := d.Attachment; a != nil {
		handle = a.PreviewHandle
		if handle == "" {
			handle = s.previews.Create(a.Filename)
		}
		s.previews.Bind(handle, tempID)
		provisional.Attachment = &model.Attachment{
			Type:     a.MIMEType,
			Filename: a.Filename,
			URL:      handle,
			Size:     a.Size,
		}
	}

	s.timeline.Append(provisional)
	s.store.ApplyIncomingMessage(ctx, provisional)
	s.notify(Change{Kind: ChangeTimeline, ConversationID: d.ConversationID})
	s.notify(Change{Kind: ChangeConversations, ConversationID: d.ConversationID})

	pending := newPendingSend(tempID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.SendTimeout)
		defer cancel()
		s.deliver(sendCtx, d, provisional, pending)
	}()

	return pending, nil
}

// Wait blocks until every in-flight send has finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}

func (s *Sender) deliver(ctx context.Context, d Draft, provisional model.Message, pending *PendingSend) {
	kind := "text"
	start := time.Now()

	var (
		confirmed *model.Message
		err       error
	)
	if a := d.Attachment; a != nil {
		kind = "attachment"
		confirmed, err = s.backend.SendAttachment(ctx, &AttachmentUpload{
			ConversationID: d.ConversationID,
			ReceiverID:     d.ReceiverID,
			Content:        d.Content,
			TempID:         provisional.TempID,
			Filename:       a.Filename,
			MIMEType:       a.MIMEType,
			Size:           a.Size,
			Body:           a.Body,
		}, func(percent int) {
			if pending.report(percent) {
				s.notify(Change{
					Kind:           ChangeProgress,
					ConversationID: d.ConversationID,
					TempID:         provisional.TempID,
					Progress:       percent,
				})
			}
		})
	} else {
		confirmed, err = s.backend.SendMessage(ctx, &model.SendMessageRequest{
			ConversationID: d.ConversationID,
			Content:        d.Content,
			ReceiverID:     d.ReceiverID,
			TempID:         provisional.TempID,
		})
	}

	if err != nil {
		s.fail(ctx, provisional, pending, kind, err)
		return
	}

	msg := *confirmed
	if msg.ConversationID == "" {
		msg.ConversationID = d.ConversationID
	}
	if msg.Sender.ID == "" {
		msg.Sender = s.self
	}
	msg.TempID = provisional.TempID
	msg.IsTemp = false

	if !s.timeline.ReplaceProvisional(provisional.TempID, msg) {
		s.timeline.Append(msg)
	}
	s.store.ApplyIncomingMessage(ctx, msg)
	s.previews.ReleaseFor(provisional.TempID)

	if err := s.realtime.SendMessage(ctx, msg); err != nil {
		s.logger.Warn("broadcast failed, peers will see the message on next load",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}

	metrics.MessagesSent.WithLabelValues(kind, "confirmed").Inc()
	if d.Attachment != nil {
		metrics.AttachmentBytes.Add(float64(d.Attachment.Size))
		pending.report(100)
	}
	s.logger.Debug("message confirmed",
		zap.String("temp_id", provisional.TempID),
		zap.String("message_id", msg.ID),
		zap.Duration("elapsed", time.Since(start)),
	)

	s.notify(Change{Kind: ChangeTimeline, ConversationID: d.ConversationID})
	s.notify(Change{Kind: ChangeConversations, ConversationID: d.ConversationID})
	pending.resolve(msg, nil)
}

func (s *Sender) fail(ctx context.Context, provisional model.Message, pending *PendingSend, kind string, cause error) {
	s.timeline.RemoveProvisional(provisional.TempID)
	s.previews.ReleaseFor(provisional.TempID)

	// The send context may be the one that expired.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resyncTimeout)
	defer cancel()
	if err := s.store.Load(ctx); err != nil {
		s.logger.Warn("resync after failed send", zap.Error(err))
	}

	metrics.MessagesSent.WithLabelValues(kind, "failed").Inc()
	s.logger.Warn("send failed",
		zap.String("temp_id", provisional.TempID),
		zap.String("conversation_id", provisional.ConversationID),
		zap.Error(cause),
	)

	err := userError("send message", "Failed to send message", cause)
	s.notify(Change{Kind: ChangeTimeline, ConversationID: provisional.ConversationID})
	s.notify(Change{Kind: ChangeConversations, ConversationID: provisional.ConversationID})
	s.notify(Change{Kind: ChangeError, ConversationID: provisional.ConversationID, TempID: provisional.TempID, Message: err.Message})
	pending.resolve(model.Message{}, err)
}
