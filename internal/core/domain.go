package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

// DateLayout is the persisted and wire format of calendar dates.
const DateLayout = "2006-01-02"

type (
	Period          string
	TransactionKind string

	// Date is a calendar date without a time component. The zero Date
	// stands for a missing or unparseable value.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Expense struct {
		ID       int64  `json:"id"`
		UserID   int64  `json:"userId"`
		Amount   Money  `json:"amount"`
		Category string `json:"category"`
		Note     string `json:"note,omitempty"`
		Date     Date   `json:"date"`
	}

	Income struct {
		ID     int64  `json:"id"`
		UserID int64  `json:"userId"`
		Amount Money  `json:"amount"`
		Source string `json:"source"`
		Note   string `json:"note,omitempty"`
		Date   Date   `json:"date"`
	}

	Budget struct {
		ID       int64  `json:"id"`
		UserID   int64  `json:"userId"`
		Category string `json:"category"`
		Amount   Money  `json:"amount"`
		Period   Period `json:"period"`
	}

	// BudgetAlert records a budget crossing into warning or danger for a
	// given period window.
	BudgetAlert struct {
		ID          int64     `json:"id"`
		UserID      int64     `json:"userId"`
		BudgetID    int64     `json:"budgetId"`
		Category    string    `json:"category"`
		Period      Period    `json:"period"`
		WindowStart Date      `json:"windowStart"`
		Spent       Money     `json:"spent"`
		Budget      Money     `json:"budget"`
		Percentage  float64   `json:"percentage"`
		Status      string    `json:"status"`
		CreatedAt   time.Time `json:"createdAt"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidPeriod      = errors.New("invalid period")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptySource        = errors.New("empty source")
	ErrInvalidOwner       = errors.New("missing owner")
	ErrEmptyUsername      = errors.New("empty username")
	ErrShortPassword      = errors.New("password must be at least 4 characters long")
	ErrLongLabel          = errors.New("label too long (max 100 characters)")
	ErrLongNote           = errors.New("note too long (max 500 characters)")
	ErrLongUsername       = errors.New("username too long (max 64 characters)")
	ErrInvalidAlertStatus = errors.New("invalid alert status")
)

const (
	maxLabelLen    = 100
	maxNoteLen     = 500
	maxUsernameLen = 64
	minPasswordLen = 4
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Only the first ten characters are
// considered so that timestamps stored by older clients still resolve to
// their calendar date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// YearMonth returns the "YYYY-MM" label of the date, or "" for the zero date.
func (d Date) YearMonth() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01")
}

// In returns midnight of the calendar date in loc.
func (d Date) In(loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (p Period) Validate() error {
	switch p {
	case Weekly, Monthly:
		return nil
	default:
		return ErrInvalidPeriod
	}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateLabel(s string, empty error) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return empty
	}
	if len(s) > maxLabelLen {
		return ErrLongLabel
	}
	return nil
}

func (e Expense) Validate() error {
	if e.UserID <= 0 {
		return ErrInvalidOwner
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := validateLabel(e.Category, ErrEmptyCategory); err != nil {
		return err
	}
	if len(e.Note) > maxNoteLen {
		return ErrLongNote
	}
	return e.Date.Validate()
}

func (i Income) Validate() error {
	if i.UserID <= 0 {
		return ErrInvalidOwner
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if err := validateLabel(i.Source, ErrEmptySource); err != nil {
		return err
	}
	if len(i.Note) > maxNoteLen {
		return ErrLongNote
	}
	return i.Date.Validate()
}

func (b Budget) Validate() error {
	if b.UserID <= 0 {
		return ErrInvalidOwner
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if err := validateLabel(b.Category, ErrEmptyCategory); err != nil {
		return err
	}
	return b.Period.Validate()
}

// ValidateCredentials checks the registration rules for a username/password pair.
func ValidateCredentials(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if len(username) > maxUsernameLen {
		return ErrLongUsername
	}
	if len(password) < minPasswordLen {
		return ErrShortPassword
	}
	return nil
}

func (a BudgetAlert) Validate() error {
	if a.UserID <= 0 || a.BudgetID <= 0 {
		return ErrInvalidOwner
	}
	if err := a.Period.Validate(); err != nil {
		return err
	}
	if err := a.WindowStart.Validate(); err != nil {
		return err
	}
	switch a.Status {
	case "warning", "danger":
		return nil
	default:
		return ErrInvalidAlertStatus
	}
}
