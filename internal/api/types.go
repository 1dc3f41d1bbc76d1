package api

import (
	"encoding/json"

	"github.com/masjid-network/masjidctl/internal/token"
)

// User is the authenticated principal as the backend reports it.
// The session service replaces it wholesale; nothing mutates it in place.
type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Role         string `json:"role"`
	UserType     string `json:"user_type"`
	ProfileImage string `json:"profile_image"`
	Phone        string `json:"phone"`
}

// EffectiveRole returns the role used for access checks. Some backend
// serializers populate role, others user_type.
func (u *User) EffectiveRole() string {
	if u.Role != "" {
		return u.Role
	}
	return u.UserType
}

// DisplayName returns the friendliest available name.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterForm is the account-creation payload. It is sent as multipart form
// data because of the optional profile image.
type RegisterForm struct {
	Username  string `validate:"required,min=3"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8"`
	FirstName string
	LastName  string
	Phone     string

	// ProfileImage is optional. When set it is attached as a file part.
	ProfileImage *FileAttachment
}

// FileAttachment is a named binary blob for multipart uploads.
type FileAttachment struct {
	FileName string
	Content  []byte
}

// ProfileUpdate carries the fields of an update_profile call. Nil pointers
// are omitted so partial updates only touch what the caller set.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// authResponse covers the login/register/refresh response shapes. Refresh
// responses arrive either as {tokens:{access,refresh}} or flat {access,refresh}.
type authResponse struct {
	Tokens  *token.Pair `json:"tokens"`
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    *User       `json:"user"`
}

// pair normalizes the two wire shapes into a single token pair.
func (r *authResponse) pair() token.Pair {
	if r.Tokens != nil {
		return *r.Tokens
	}
	return token.Pair{Access: r.Access, Refresh: r.Refresh}
}

// Mosque is one directory entry.
type Mosque struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Phone     string  `json:"phone"`
	Email     string  `json:"email"`
	Verified  bool    `json:"verified"`
	Favorite  bool    `json:"is_favorite"`
	Distance  float64 `json:"distance_km,omitempty"`
}

// MosqueRegistration is a request to add a mosque to the directory.
type MosqueRegistration struct {
	Name      string  `validate:"required"`
	Address   string  `validate:"required"`
	City      string  `validate:"required"`
	Country   string  `validate:"required"`
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
	Phone     string
	Email     string `validate:"omitempty,email"`
	Website   string `validate:"omitempty,url"`

	// Document is an optional proof-of-establishment upload. Its presence
	// forces the registration onto the multipart path.
	Document *FileAttachment
}

// PrayerDay is one day of prayer times as the backend computed them.
type PrayerDay struct {
	Date    string `json:"date"`
	Fajr    string `json:"fajr"`
	Sunrise string `json:"sunrise"`
	Dhuhr   string `json:"dhuhr"`
	Asr     string `json:"asr"`
	Maghrib string `json:"maghrib"`
	Isha    string `json:"isha"`
}

// MonthlyTimetable is a location's prayer times for one calendar month.
type MonthlyTimetable struct {
	Location string      `json:"location"`
	Month    int         `json:"month"`
	Year     int         `json:"year"`
	Days     []PrayerDay `json:"days"`
}

// Subscription is a notification signup.
type Subscription struct {
	ID        int    `json:"id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	MosqueID  int    `json:"mosque"`
	Type      string `json:"subscription_type"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

// SubscriptionRequest creates or updates a subscription.
type SubscriptionRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone,omitempty"`
	MosqueID int    `json:"mosque,omitempty"`
	Type     string `json:"subscription_type" validate:"required,oneof=daily weekly monthly ramadan"`
}

// Booking is a facility reservation at a mosque.
type Booking struct {
	ID        int    `json:"id"`
	MosqueID  int    `json:"mosque"`
	UserID    int    `json:"user"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Purpose   string `json:"purpose"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// BookingRequest creates a facility reservation.
type BookingRequest struct {
	MosqueID int    `json:"mosque" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Time     string `json:"time" validate:"required"`
	Purpose  string `json:"purpose,omitempty"`
}

// BookingUpdate carries the mutable booking fields. Nil pointers are
// omitted so partial updates only touch what the caller set.
type BookingUpdate struct {
	Date    *string `json:"date,omitempty"`
	Time    *string `json:"time,omitempty"`
	Purpose *string `json:"purpose,omitempty"`
	Status  *string `json:"status,omitempty"`
}

// BookingFilter narrows a booking listing.
type BookingFilter struct {
	MosqueID int
	Status   string
}

// Donation is one recorded contribution.
type Donation struct {
	ID            int     `json:"id"`
	MosqueID      int     `json:"mosque"`
	Amount        float64 `json:"amount"`
	DonorName     string  `json:"donor_name"`
	PaymentMethod string  `json:"payment_method"`
	Reference     string  `json:"reference"`
	CreatedAt     string  `json:"created_at"`
}

// DonationRequest records a contribution to a mosque.
type DonationRequest struct {
	MosqueID      int     `json:"mosque" validate:"required"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	DonorName     string  `json:"donor_name,omitempty"`
	PaymentMethod string  `json:"payment_method" validate:"required,oneof=cash card transfer online"`
}

// LedgerEntry is one income or expense record in a mosque's books.
// Income entries carry Source, expense entries carry Category.
type LedgerEntry struct {
	ID          int     `json:"id"`
	MosqueID    int     `json:"mosque"`
	Amount      float64 `json:"amount"`
	Source      string  `json:"source,omitempty"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"created_at"`
}

// LedgerEntryRequest records an income or expense entry. Exactly one of
// Source and Category is set, matching the entry kind.
type LedgerEntryRequest struct {
	MosqueID    int     `json:"mosque" validate:"required"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Source      string  `json:"source,omitempty"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date" validate:"required"`
}

// LedgerUpdate carries the mutable fields of a ledger entry.
type LedgerUpdate struct {
	Amount      *float64 `json:"amount,omitempty"`
	Source      *string  `json:"source,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Date        *string  `json:"date,omitempty"`
}

// FinanceSummary aggregates one side of a mosque's books.
type FinanceSummary struct {
	MosqueID int     `json:"mosque"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// SubscriptionLog is one delivery record for a subscription.
type SubscriptionLog struct {
	ID             int    `json:"id"`
	SubscriptionID int    `json:"subscription"`
	SentAt         string `json:"sent_at"`
	Channel        string `json:"channel"`
	Status         string `json:"status"`
}

// decodeList accepts both backend list shapes: the paginated envelope
// {count, results: [...]} and a bare JSON array.
func decodeList[T any](raw []byte) ([]T, error) {
	var env struct {
		Count   int `json:"count"`
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Results != nil {
		return env.Results, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}
