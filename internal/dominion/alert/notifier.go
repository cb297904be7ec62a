// Package alert tells operators about completion failures they can act on, such as a
// revoked API key, through an SNS topic and/or SES email.
package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dominion-workers/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	Kinds       []string
	SNSTopicARN string
	EmailFrom   string
	EmailTo     []string
}

// Alert describes one failed completion.
type Alert struct {
	RequestID uuid.UUID
	Category  string
	Model     string
	Kind      string
	Message   string
	At        time.Time
}

func (a Alert) subject() string {
	return fmt.Sprintf("[dominion] %s failure in %s", a.Kind, a.Category)
}

func (a Alert) body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", a.Category)
	fmt.Fprintf(&b, "Model: %s\n", a.Model)
	fmt.Fprintf(&b, "Failure kind: %s\n", a.Kind)
	fmt.Fprintf(&b, "Request ID: %s\n", a.RequestID)
	fmt.Fprintf(&b, "At: %s\n\n", a.At.UTC().Format(time.RFC3339))
	b.WriteString(a.Message)
	return b.String()
}

type Notifier struct {
	config Config
	kinds  map[string]bool
	ses    SESService
	sns    SNSService
	logger logger.Logger
}

// New builds a notifier. Either client may be nil, which disables that channel.
func New(cfg Config, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	kinds := make(map[string]bool, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		kinds[k] = true
	}
	if cfg.SNSTopicARN == "" {
		snsClient = nil
	}
	if cfg.EmailFrom == "" || len(cfg.EmailTo) == 0 {
		sesClient = nil
	}
	return &Notifier{
		config: cfg,
		kinds:  kinds,
		ses:    sesClient,
		sns:    snsClient,
		logger: log.WithFields(map[string]interface{}{"component": "alert"}),
	}
}

// NewFromAWS loads the default AWS credential chain for region.
func NewFromAWS(ctx context.Context, region string, cfg Config, log logger.Logger) (*Notifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return New(cfg, ses.NewFromConfig(awsCfg), sns.NewFromConfig(awsCfg), log), nil
}

// Wants reports whether failures of kind trigger an alert.
func (n *Notifier) Wants(kind string) bool {
	return n != nil && n.kinds[kind]
}

// Notify sends a on every configured channel. Alerts for unwanted kinds are ignored.
func (n *Notifier) Notify(ctx context.Context, a Alert) error {
	if !n.Wants(a.Kind) {
		return nil
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}

	var errs []error
	if n.sns != nil {
		_, err := n.sns.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(n.config.SNSTopicARN),
			Subject:  aws.String(a.subject()),
			Message:  aws.String(a.body()),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("sns publish: %w", err))
		}
	}
	if n.ses != nil {
		_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
			Destination: &types.Destination{ToAddresses: n.config.EmailTo},
			Message: &types.Message{
				Subject: &types.Content{Data: aws.String(a.subject())},
				Body:    &types.Body{Text: &types.Content{Data: aws.String(a.body())}},
			},
			Source: aws.String(n.config.EmailFrom),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("ses send: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	n.logger.Info("alert sent", map[string]interface{}{
		"category":  a.Category,
		"kind":      a.Kind,
		"requestId": a.RequestID.String(),
	})
	return nil
}
