package models

import (
	"time"

	"gorm.io/gorm"
)

// Tutor is the adult responsible for one or more students.
type Tutor struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirstName    string `gorm:"type:varchar(45)" json:"first_name"`
	LastName     string `gorm:"type:varchar(45)" json:"last_name"`
	SecondLast   string `gorm:"type:varchar(45)" json:"second_last,omitempty"`
	Phone        string `gorm:"type:varchar(10)" json:"phone"`
	Relationship string `gorm:"type:varchar(30)" json:"relationship"`
	Email        string `gorm:"type:varchar(100)" json:"email"`
	Occupation   string `gorm:"type:varchar(50)" json:"occupation"`
	Address      string `gorm:"type:varchar(200)" json:"address"`

	Students []Student `gorm:"foreignKey:TutorID" json:"students,omitempty"`
}

// Student is an enrolled dance student.
type Student struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirstName    string     `gorm:"type:varchar(45);not null" json:"first_name"`
	LastName     string     `gorm:"type:varchar(45);not null" json:"last_name"`
	SecondLast   string     `gorm:"type:varchar(45)" json:"second_last,omitempty"`
	BirthDate    time.Time  `json:"birth_date"`
	TutorID      uint       `gorm:"index;not null" json:"tutor_id"`
	EnrolledAt   time.Time  `json:"enrolled_at"`
	ReenrolledAt *time.Time `json:"reenrolled_at,omitempty"`
	Status       string     `gorm:"type:varchar(20);default:'activo'" json:"status"` // activo, inactivo, egresado
	School       string     `gorm:"type:varchar(100)" json:"school,omitempty"`

	Tutor             Tutor              `gorm:"foreignKey:TutorID" json:"tutor,omitempty"`
	EmergencyContacts []EmergencyContact `gorm:"foreignKey:StudentID" json:"emergency_contacts,omitempty"`
	Groups            []Group            `gorm:"many2many:student_groups;" json:"groups,omitempty"`
}

// FullName joins the name parts for labels and receipts.
func (s Student) FullName() string {
	name := s.FirstName + " " + s.LastName
	if s.SecondLast != "" {
		name += " " + s.SecondLast
	}
	return name
}

// EmergencyContact is a person to reach when a student's tutor is unavailable.
type EmergencyContact struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	StudentID    uint   `gorm:"index;not null" json:"student_id"`
	FirstName    string `gorm:"type:varchar(45);not null" json:"first_name"`
	LastName     string `gorm:"type:varchar(45);not null" json:"last_name"`
	Phone        string `gorm:"type:varchar(10);not null" json:"phone"`
	Relationship string `gorm:"type:varchar(30);not null" json:"relationship"`
}
