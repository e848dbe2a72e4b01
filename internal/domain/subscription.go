package domain

import (
	"time"

	"github.com/Kelvinsaleh/ai-therapist-agent-sub001/pkg/timeutil"
)

// SubscriptionStatus represents the subscription state
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
)

// FeatureKey names a gated capability
type FeatureKey string

const (
	FeatureUnlimitedChat      FeatureKey = "unlimitedChat"
	FeaturePremiumMeditations FeatureKey = "premiumMeditations"
	FeatureAdvancedAnalytics  FeatureKey = "advancedAnalytics"
	FeaturePrioritySupport    FeatureKey = "prioritySupport"
	FeatureRescuePairs        FeatureKey = "rescuePairs"
	FeatureCustomThemes       FeatureKey = "customThemes"
	FeatureExportData         FeatureKey = "exportData"
	FeatureCrisisSupport      FeatureKey = "crisisSupport"
)

// FeatureSet is the fixed-shape feature flag bundle stored on a subscription.
// Unknown feature keys are never implicitly granted.
type FeatureSet struct {
	UnlimitedChat      bool `json:"unlimitedChat"`
	PremiumMeditations bool `json:"premiumMeditations"`
	AdvancedAnalytics  bool `json:"advancedAnalytics"`
	PrioritySupport    bool `json:"prioritySupport"`
	RescuePairs        bool `json:"rescuePairs"`
	CustomThemes       bool `json:"customThemes"`
	ExportData         bool `json:"exportData"`
	CrisisSupport      bool `json:"crisisSupport"`
}

// Has reports whether the named feature is granted by this bundle
func (f FeatureSet) Has(key FeatureKey) bool {
	switch key {
	case FeatureUnlimitedChat:
		return f.UnlimitedChat
	case FeaturePremiumMeditations:
		return f.PremiumMeditations
	case FeatureAdvancedAnalytics:
		return f.AdvancedAnalytics
	case FeaturePrioritySupport:
		return f.PrioritySupport
	case FeatureRescuePairs:
		return f.RescuePairs
	case FeatureCustomThemes:
		return f.CustomThemes
	case FeatureExportData:
		return f.ExportData
	case FeatureCrisisSupport:
		return f.CrisisSupport
	default:
		return false
	}
}

// PaidFeatures returns the bundle granted to any paid tier
func PaidFeatures() FeatureSet {
	return FeatureSet{
		UnlimitedChat:      true,
		PremiumMeditations: true,
		AdvancedAnalytics:  true,
		PrioritySupport:    true,
		RescuePairs:        true,
		CustomThemes:       true,
		ExportData:         true,
		CrisisSupport:      true,
	}
}

// FreeFeatures returns the bundle for users without a paid subscription.
// Every gated flag is off: entitlement comes only from an active
// subscription or a bypass entry, never by default.
func FreeFeatures() FeatureSet {
	return FeatureSet{}
}

// Subscription is a user's persisted subscription record. Historical rows
// are retained; at most one row per user is active at any instant.
type Subscription struct {
	ID                      string             `json:"id"`
	UserID                  string             `json:"user_id"`
	PlanType                PlanType           `json:"plan_type"`
	Status                  SubscriptionStatus `json:"status"`
	StartDate               time.Time          `json:"start_date"`
	EndDate                 time.Time          `json:"end_date"`
	NextBillingDate         *time.Time         `json:"next_billing_date,omitempty"`
	ProcessorSubscriptionID *string            `json:"processor_subscription_id,omitempty"`
	Features                FeatureSet         `json:"features"`
	CreatedAt               time.Time          `json:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at"`
	CancelledAt             *time.Time         `json:"cancelled_at,omitempty"`
}

// IsActive reports whether the subscription currently grants entitlement.
// A cancelled subscription keeps its entitlement until the paid period
// runs out; cancellation only stops renewal.
func (s *Subscription) IsActive() bool {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusCancelled {
		return false
	}
	return s.EndDate.After(timeutil.Now())
}

// IsRecurring reports whether the processor bills this subscription
func (s *Subscription) IsRecurring() bool {
	return s.ProcessorSubscriptionID != nil && *s.ProcessorSubscriptionID != ""
}

// FreePlanRecord synthesizes the record returned for users with no
// subscription history
func FreePlanRecord(userID string) *Subscription {
	now := timeutil.Now()
	return &Subscription{
		UserID:    userID,
		PlanType:  PlanFree,
		Status:    SubscriptionStatusInactive,
		StartDate: now,
		EndDate:   now,
		Features:  FreeFeatures(),
	}
}

// BypassEntry is an allow-list identity granted full entitlement without
// any subscription or payment
type BypassEntry struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
