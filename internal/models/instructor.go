package models

import (
	"time"

	"gorm.io/gorm"
)

// Instructor teaches one or more groups. Instructors can also buy
// merchandise, so sales may belong to them instead of a student.
type Instructor struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	FirstName  string `gorm:"type:varchar(45);not null" json:"first_name"`
	LastName   string `gorm:"type:varchar(45);not null" json:"last_name"`
	SecondLast string `gorm:"type:varchar(45)" json:"second_last,omitempty"`

	Groups []Group `gorm:"foreignKey:InstructorID" json:"groups,omitempty"`
}

// FullName joins the name parts for labels and receipts.
func (i Instructor) FullName() string {
	name := i.FirstName + " " + i.LastName
	if i.SecondLast != "" {
		name += " " + i.SecondLast
	}
	return name
}

// Group is a scheduled class a student attends.
type Group struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name         string `gorm:"type:varchar(50);not null" json:"name"`
	Schedule     string `gorm:"type:varchar(20);not null" json:"schedule"`
	Days         string `gorm:"type:varchar(50);not null" json:"days"`
	Level        string `gorm:"type:varchar(30);not null" json:"level"`
	InstructorID *uint  `gorm:"index" json:"instructor_id,omitempty"`

	Instructor *Instructor `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
	Students   []Student   `gorm:"many2many:student_groups;" json:"students,omitempty"`
}
