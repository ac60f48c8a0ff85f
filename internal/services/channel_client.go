package services

import (
	"context"
	"errors"

	"paygate/internal/models/db_models"
)

// Channel platform outcomes. ErrAlreadyMember and ErrNotMember mean the
// platform already matches the desired state and count as success.
var (
	ErrAlreadyMember        = errors.New("contact is already a channel member")
	ErrNotMember            = errors.New("contact is not a channel member")
	ErrRecipientUnreachable = errors.New("recipient blocked the bot or cannot be reached")
)

// ChannelClient is the messaging platform seen by the access reconciler and
// the notification engine.
type ChannelClient interface {
	CreateInviteLink(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel) (string, error)
	AddMember(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel, contact *db_models.Contact, inviteLink string) error
	RemoveMember(ctx context.Context, bot *db_models.Bot, channel *db_models.GatedChannel, contact *db_models.Contact) error
	SendText(ctx context.Context, bot *db_models.Bot, contact *db_models.Contact, text string) error
	SendMedia(ctx context.Context, bot *db_models.Bot, contact *db_models.Contact, mediaURL string) error
}
