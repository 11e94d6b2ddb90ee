// Package mailer delivers outbound notification emails, either directly
// over SMTP or through the message queue for a worker to deliver.
package mailer

import (
	"context"
	"encoding/json"

	"github.com/fotofeed/apiserver/config"
	"github.com/fotofeed/apiserver/internal/mq"
	"gopkg.in/gomail.v2"
)

// Sender sends a single plain-text message to an address. Implementations
// must report delivery (or enqueue) failures to the caller.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Message is the queue payload for a deferred email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SMTPSender delivers mail synchronously over SMTP.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender constructs an SMTP sender from config.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one plain-text message.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return s.dialer.DialAndSend(m)
}

// QueueSender publishes mail to the queue instead of delivering it.
type QueueSender struct {
	queue   *mq.MQ
	channel string
}

// NewQueueSender constructs a queue-backed sender publishing to channel.
func NewQueueSender(queue *mq.MQ, channel string) *QueueSender {
	return &QueueSender{queue: queue, channel: channel}
}

// Send enqueues one message. A publish failure propagates to the caller.
func (s *QueueSender) Send(ctx context.Context, to, subject, body string) error {
	data, err := json.Marshal(Message{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	_, err = s.queue.Publish(ctx, s.channel, data, nil)
	return err
}

// Consume subscribes to the mail channel and delivers each queued message
// with the given sender. Blocks until ctx is cancelled or the subscription
// fails. A failed delivery nacks the message for redelivery.
func Consume(ctx context.Context, queue *mq.MQ, channel string, sender Sender) error {
	return queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			// Undecodable payloads would redeliver forever; drop them.
			return nil
		}
		return sender.Send(ctx, m.To, m.Subject, m.Body)
	})
}
