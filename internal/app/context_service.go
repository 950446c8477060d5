// internal/app/context_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/domain/user"
	"notification_dispatcher/internal/infra/audit"
	idb "notification_dispatcher/internal/infra/database"
)

// ContextService builds the per-dispatch-run snapshot of a recipient's
// contact details and channel preferences. Nothing is cached: every event
// or delivery processed gets a fresh read, so a profile update between
// retries is picked up automatically.
type ContextService struct {
	users user.Repository
	audit *audit.Logger
}

func NewContextService(users user.Repository, auditLog *audit.Logger) *ContextService {
	return &ContextService{users: users, audit: auditLog}
}

// LoadUserContext joins the preference and profile rows for a user.
// Channels enabled by either source win: the profile's legacy channel list,
// the preference row's channels array, and the explicit opt-in flags are
// all merged. Email defaults to enabled when its flag is entirely absent.
func (s *ContextService) LoadUserContext(ctx context.Context, userID string) (*notification.UserContext, error) {
	var (
		profile *user.Profile
		optIn   *user.OptIn
		perr    error
		oerr    error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		profile, perr = s.users.GetProfile(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		optIn, oerr = s.users.GetOptIn(ctx, userID)
	}()
	wg.Wait()

	// A missing row is an empty source, not a failure.
	if errors.Is(perr, idb.ErrProfileNotFound) {
		profile, perr = nil, nil
	}
	if errors.Is(oerr, idb.ErrOptInNotFound) {
		optIn, oerr = nil, nil
	}
	if perr != nil {
		return nil, fmt.Errorf("loading profile for user %s: %w", userID, perr)
	}
	if oerr != nil {
		return nil, fmt.Errorf("loading opt-in for user %s: %w", userID, oerr)
	}

	enabled := make(map[notification.Channel]bool)
	if optIn != nil {
		for _, ch := range notification.ParseChannels(optIn.Channels) {
			enabled[ch] = true
		}
	}
	if profile != nil {
		for _, ch := range notification.ParseChannels(profile.NotificationChannels) {
			enabled[ch] = true
		}
	}
	if optIn != nil && optIn.WaOptIn.Valid && optIn.WaOptIn.Bool {
		enabled[notification.ChannelWhatsApp] = true
	}
	// Email opt-in defaults to enabled when the flag was never set.
	if optIn == nil || !optIn.EmailOptIn.Valid || optIn.EmailOptIn.Bool {
		enabled[notification.ChannelEmail] = true
	}

	preferences := map[notification.Channel]bool{
		notification.ChannelEmail:    enabled[notification.ChannelEmail],
		notification.ChannelWhatsApp: enabled[notification.ChannelWhatsApp],
	}

	result := &notification.UserContext{
		Preferences: preferences,
		Timezone:    "UTC",
	}
	// Preference timezone wins over profile timezone, then UTC.
	timezoneSet := false
	if optIn != nil {
		result.QuietHoursStart = optIn.QuietHoursStart.String
		result.QuietHoursEnd = optIn.QuietHoursEnd.String
		if optIn.Timezone.Valid && optIn.Timezone.String != "" {
			result.Timezone = optIn.Timezone.String
			timezoneSet = true
		}
	}
	if profile != nil {
		if !timezoneSet && profile.Timezone.Valid && profile.Timezone.String != "" {
			result.Timezone = profile.Timezone.String
		}
		result.Email = strings.TrimSpace(profile.Email.String)
		result.Phone = strings.TrimSpace(profile.Phone.String)
		result.FullName = profile.FullName.String
	}
	return result, nil
}

// GetNotificationContact is the reduced contact lookup used by
// non-dispatch callers. When the profile carries no email it falls back to
// the auth system's primary email for the user.
func (s *ContextService) GetNotificationContact(ctx context.Context, userID string) (*notification.Contact, error) {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil && !errors.Is(err, idb.ErrProfileNotFound) {
		s.audit.CaptureException(err, map[string]any{"scope": "notify:getContact", "userId": userID})
		return nil, fmt.Errorf("loading profile for user %s: %w", userID, err)
	}

	contact := &notification.Contact{}
	if profile != nil {
		contact.Email = strings.TrimSpace(profile.Email.String)
		contact.Phone = strings.TrimSpace(profile.Phone.String)
		contact.FullName = profile.FullName.String
		contact.Timezone = profile.Timezone.String
	}

	if contact.Email == "" {
		email, authErr := s.users.GetAuthEmail(ctx, userID)
		if authErr != nil {
			if !errors.Is(authErr, idb.ErrAuthUserNotFound) {
				s.audit.CaptureException(authErr, map[string]any{"scope": "notify:getContact:admin", "userId": userID})
			}
		} else {
			contact.Email = strings.TrimSpace(email)
		}
	}
	return contact, nil
}
