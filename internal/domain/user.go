package domain

// Source is the acquisition channel a user signed up through.
type Source string

const (
	SourceEmail Source = "email"
	SourceGuest Source = "guest"
	SourceOAuth Source = "oauth"
)

// User is the identity record. UserID is immutable once assigned; email is
// unique across users and enforced through the email index before create.
// Users are never hard-deleted.
type User struct {
	UserID            string
	Email             string
	Source            Source
	PasswordHash      string
	Provider          string
	ProviderAccountID string
	CreatedAt         string

	StripeCustomerID     string
	ActiveSubscriptionID string
	SubscriptionStatus   string
	PlanID               string
	CurrentPeriodStart   string
	CurrentPeriodEnd     string
	CancelAtPeriodEnd    bool
}
