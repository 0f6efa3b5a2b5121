package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Parent struct {
	FatherName string `json:"fatherName"`
	MotherName string `json:"motherName"`
	Occupation string `json:"occupation"`
	Contact    string `json:"parentContact" validate:"omitempty,mobile"`
	Email      string `json:"email" validate:"omitempty,email"`
}

type Image struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

type Student struct {
	RollNo               int        `json:"rollNo"`
	Name                 string     `json:"name"`
	Class                string     `json:"class"`
	PreviousSchoolName   string     `json:"previousSchoolName,omitempty"`
	Medium               string     `json:"medium,omitempty"`
	DOB                  *time.Time `json:"DOB,omitempty"`
	Gender               string     `json:"gender,omitempty"`
	Category             string     `json:"category,omitempty"`
	State                string     `json:"state,omitempty"`
	City                 string     `json:"city,omitempty"`
	PinCode              string     `json:"pinCode,omitempty"`
	PermanentAddress     string     `json:"permanentAddress,omitempty"`
	MobileNumber         string     `json:"mobileNumber,omitempty"`
	TShirtSize           string     `json:"tShirtSize,omitempty"`
	HowDidYouHearAboutUs string     `json:"howDidYouHearAboutUs,omitempty"`
	ProgrammeName        string     `json:"programmeName,omitempty"`
	EmergencyContact     string     `json:"emergencyContact,omitempty"`
	Email                string     `json:"email,omitempty"`
	Batch                string     `json:"batch,omitempty"` // batch name, lowercase
	Parent               Parent     `json:"parent"`
	Image                *Image     `json:"image,omitempty"`
	Kits                 []string   `json:"kit"`
	FeeID                string     `json:"fee,omitempty"` // back-reference to the fee ledger
	CreatedAt            time.Time  `json:"createdAt"`     // UTC
	UpdatedAt            time.Time  `json:"updatedAt"`     // UTC
}

func (s Student) HasFee() bool { return s.FeeID != "" }

// NewStudent contains information needed to enroll a Student.
// A zero RollNo asks for an auto-allocated one.
type NewStudent struct {
	RollNo               int    `json:"rollNo" validate:"omitempty,rollno"`
	Name                 string `json:"name" validate:"required"`
	Class                string `json:"class"`
	PreviousSchoolName   string `json:"previousSchoolName"`
	Medium               string `json:"medium"`
	DOB                  string `json:"DOB" validate:"omitempty,ymd"`
	Gender               string `json:"gender"`
	Category             string `json:"category"`
	State                string `json:"state"`
	City                 string `json:"city"`
	PinCode              string `json:"pinCode"`
	PermanentAddress     string `json:"permanentAddress"`
	MobileNumber         string `json:"mobileNumber" validate:"omitempty,mobile"`
	TShirtSize           string `json:"tShirtSize"`
	HowDidYouHearAboutUs string `json:"howDidYouHearAboutUs"`
	ProgrammeName        string `json:"programmeName"`
	EmergencyContact     string `json:"emergencyContact" validate:"omitempty,mobile"`
	Email                string `json:"email" validate:"omitempty,email"`
	Batch                string `json:"batch"`
	Parent               Parent `json:"parent"`
	Image                *Image `json:"image"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Class = core.CleanString(ns.Class)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Batch = core.CleanString(ns.Batch, true /* lower */)
	ns.MobileNumber = core.CleanString(ns.MobileNumber)
	ns.EmergencyContact = core.CleanString(ns.EmergencyContact)
	ns.Parent.Contact = core.CleanString(ns.Parent.Contact)
	ns.Parent.Email = core.CleanString(ns.Parent.Email, true /* lower */)
	return validate.Struct(ns)
}

func (ns NewStudent) toStudent(now time.Time) Student {
	s := Student{
		RollNo:               ns.RollNo,
		Name:                 ns.Name,
		Class:                ns.Class,
		PreviousSchoolName:   ns.PreviousSchoolName,
		Medium:               ns.Medium,
		Gender:               ns.Gender,
		Category:             ns.Category,
		State:                ns.State,
		City:                 ns.City,
		PinCode:              ns.PinCode,
		PermanentAddress:     ns.PermanentAddress,
		MobileNumber:         ns.MobileNumber,
		TShirtSize:           ns.TShirtSize,
		HowDidYouHearAboutUs: ns.HowDidYouHearAboutUs,
		ProgrammeName:        ns.ProgrammeName,
		EmergencyContact:     ns.EmergencyContact,
		Email:                ns.Email,
		Batch:                ns.Batch,
		Parent:               ns.Parent,
		Image:                ns.Image,
		Kits:                 []string{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if dob, err := core.ParseDate(ns.DOB); err == nil {
		s.DOB = &dob
	}
	return s
}

// UpdateStudent defines what may be changed on an enrolled Student. Nil fields are left untouched.
type UpdateStudent struct {
	Name             *string `json:"name" validate:"omitempty,min=1"`
	Class            *string `json:"class"`
	Batch            *string `json:"batch"`
	MobileNumber     *string `json:"mobileNumber" validate:"omitempty,mobile"`
	EmergencyContact *string `json:"emergencyContact" validate:"omitempty,mobile"`
	Email            *string `json:"email" validate:"omitempty,email"`
	PermanentAddress *string `json:"permanentAddress"`
	City             *string `json:"city"`
	State            *string `json:"state"`
	PinCode          *string `json:"pinCode"`
	Parent           *Parent `json:"parent"`
	Image            *Image  `json:"image"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	clean := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	clean(us.Name, false)
	clean(us.Class, false)
	clean(us.Batch, true)
	clean(us.Email, true)
	clean(us.MobileNumber, false)
	clean(us.EmergencyContact, false)
	return validate.Struct(us)
}

func (us UpdateStudent) apply(s *Student) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.Name, us.Name)
	set(&s.Class, us.Class)
	set(&s.Batch, us.Batch)
	set(&s.MobileNumber, us.MobileNumber)
	set(&s.EmergencyContact, us.EmergencyContact)
	set(&s.Email, us.Email)
	set(&s.PermanentAddress, us.PermanentAddress)
	set(&s.City, us.City)
	set(&s.State, us.State)
	set(&s.PinCode, us.PinCode)
	if us.Parent != nil {
		p := *us.Parent
		p.Email = core.CleanString(p.Email, true /* lower */)
		s.Parent = p
	}
	if us.Image != nil {
		s.Image = us.Image
	}
}

type QueryFilter struct {
	Search string `query:"search"`
	Batch  string `query:"batch"`
	Class  string `query:"class"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Batch = core.CleanString(qf.Batch, true /* lower */)
	qf.Class = core.CleanString(qf.Class)
}

// Matches reports whether s passes the filter. Search is a case-insensitive match on the name,
// email or roll number.
func (qf QueryFilter) Matches(s Student) bool {
	if qf.Batch != "" && s.Batch != qf.Batch {
		return false
	}
	if qf.Class != "" && s.Class != qf.Class {
		return false
	}
	if qf.Search != "" {
		return containsFold(s.Name, qf.Search) || containsFold(s.Email, qf.Search) ||
			containsFold(itoa(s.RollNo), qf.Search)
	}
	return true
}

// BatchCount is the number of students enrolled in a batch.
type BatchCount struct {
	Batch string `json:"batch"`
	Count int64  `json:"count"`
}

// orderable fields for Query
var OrderingFields = map[string]bool{"rollNo": true, "name": true, "createdAt": true}
