package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/model"
)

// SESAPI is the subset of the SES v2 client used for contact lists.
type SESAPI interface {
	CreateContactList(ctx context.Context, in *sesv2.CreateContactListInput, optFns ...func(*sesv2.Options)) (*sesv2.CreateContactListOutput, error)
	CreateContact(ctx context.Context, in *sesv2.CreateContactInput, optFns ...func(*sesv2.Options)) (*sesv2.CreateContactOutput, error)
}

// NewSESClient builds an SES v2 client from static credentials, falling
// back to the default AWS credential chain when no keys are configured.
func NewSESClient(ctx context.Context, cfg config.SESConfig) (*sesv2.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "ses: load aws config")
	}
	return sesv2.NewFromConfig(awsCfg), nil
}

// SES creates one SES contact list per campaign with a contact per lead.
type SES struct {
	api   SESAPI
	topic string
	now   func() time.Time
}

// NewSES creates an SES dispatcher. topic, when set, is added to each list
// with contacts opted in.
func NewSES(api SESAPI, topic string) *SES {
	return &SES{api: api, topic: strings.TrimSpace(topic), now: time.Now}
}

// Name implements Dispatcher.
func (s *SES) Name() string { return "ses" }

// RequiresEmail implements EmailRequirer. Contacts are keyed by address.
func (s *SES) RequiresEmail() bool { return true }

// Dispatch implements Dispatcher. Leads without an email are skipped. A
// contact that already exists on the list counts as assigned.
func (s *SES) Dispatch(ctx context.Context, c Campaign, cands []model.CandidateWithScore) ([]model.CampaignAssignment, error) {
	listName := ContactListName(c)

	in := &sesv2.CreateContactListInput{
		ContactListName: aws.String(listName),
		Description:     aws.String(c.Name),
	}
	if s.topic != "" {
		in.Topics = []types.Topic{{
			TopicName:                 aws.String(s.topic),
			DisplayName:               aws.String(c.Name),
			DefaultSubscriptionStatus: types.SubscriptionStatusOptIn,
		}}
	}
	if _, err := s.api.CreateContactList(ctx, in); err != nil && !isAlreadyExists(err) {
		return nil, eris.Wrapf(err, "ses: create contact list %s", listName)
	}

	log := zap.L().With(zap.String("stage", "campaign"), zap.String("contact_list", listName))
	now := s.now()
	out := make([]model.CampaignAssignment, 0, len(cands))
	for _, cand := range cands {
		email := cand.ContactEmail()
		if email == "" {
			continue
		}

		attrs, err := contactAttributes(cand)
		if err != nil {
			return out, err
		}
		contact := &sesv2.CreateContactInput{
			ContactListName: aws.String(listName),
			EmailAddress:    aws.String(email),
			AttributesData:  aws.String(attrs),
		}
		if s.topic != "" {
			contact.TopicPreferences = []types.TopicPreference{{
				TopicName:          aws.String(s.topic),
				SubscriptionStatus: types.SubscriptionStatusOptIn,
			}}
		}

		if _, err := s.api.CreateContact(ctx, contact); err != nil {
			if !isAlreadyExists(err) {
				return out, eris.Wrapf(err, "ses: create contact for %s", cand.PlaceID)
			}
			log.Debug("contact already on list", zap.String("place_id", cand.PlaceID))
		}
		out = append(out, assign(c, cand, now))
	}
	return out, nil
}

var listNameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ContactListName derives a valid SES contact list name from the campaign.
func ContactListName(c Campaign) string {
	name := strings.Trim(listNameChars.ReplaceAllString(strings.TrimSpace(c.Name), "-"), "-")
	if len(name) > 48 {
		name = name[:48]
	}
	id := c.ID
	if len(id) > 8 {
		id = id[:8]
	}
	if name == "" {
		return "leadgen-" + id
	}
	return "leadgen-" + name + "-" + id
}

func contactAttributes(cand model.CandidateWithScore) (string, error) {
	attrs := map[string]any{
		"name":     cand.Name,
		"place_id": cand.PlaceID,
	}
	if score, ok := cand.Score(); ok {
		attrs["score"] = score
		attrs["grade"] = string(cand.Enrichment.Grade)
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		return "", eris.Wrap(err, "ses: marshal contact attributes")
	}
	return string(data), nil
}

func isAlreadyExists(err error) bool {
	var exists *types.AlreadyExistsException
	return errors.As(err, &exists)
}
