package model

import "time"

// Person is an enrolled member of the roster.
type Person struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     *string   `json:"photo"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	ClassID   *string   `json:"classId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Class groups persons. It cannot be removed while referenced.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ClassDetail is a class together with its students.
type ClassDetail struct {
	Class
	Students []Person `json:"students"`
}

// PersonInput is the create shape: every field except the class is required.
type PersonInput struct {
	Name    string
	Email   string
	ClassID *string
}

// PersonPatch is the update shape: nil fields are left untouched.
// A ClassID pointing at "" removes the person from their class.
type PersonPatch struct {
	Name    *string
	Email   *string
	ClassID *string
}

// Empty reports whether the patch changes nothing.
func (p PersonPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.ClassID == nil
}

// Image is an uploaded picture as accepted by the upload collaborator.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}
