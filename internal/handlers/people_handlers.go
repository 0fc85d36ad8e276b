package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/GualbertoOm/Ballet/internal/models"
)

// PeopleHandler covers the directory side of the school: tutors, students,
// instructors and class groups.
type PeopleHandler struct {
	db *gorm.DB
}

func NewPeopleHandler(db *gorm.DB) *PeopleHandler {
	return &PeopleHandler{db: db}
}

// ---- Tutors ----

type tutorRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=45"`
	LastName     string `json:"last_name" validate:"required,max=45"`
	SecondLast   string `json:"second_last,omitempty" validate:"max=45"`
	Phone        string `json:"phone" validate:"required,len=10,numeric"`
	Relationship string `json:"relationship" validate:"required,max=30"`
	Email        string `json:"email" validate:"omitempty,email"`
	Occupation   string `json:"occupation,omitempty" validate:"max=50"`
	Address      string `json:"address,omitempty" validate:"max=200"`
}

func (h *PeopleHandler) ListTutors(c echo.Context) error {
	var tutors []models.Tutor
	if err := h.db.Preload("Students").Order("first_name ASC, last_name ASC").Find(&tutors).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tutors)
}

func (h *PeopleHandler) CreateTutor(c echo.Context) error {
	var req tutorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	tutor := models.Tutor{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		SecondLast:   req.SecondLast,
		Phone:        req.Phone,
		Relationship: req.Relationship,
		Email:        req.Email,
		Occupation:   req.Occupation,
		Address:      req.Address,
	}
	if err := h.db.Create(&tutor).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, tutor)
}

// ---- Students ----

type emergencyContactRequest struct {
	FirstName    string `json:"first_name" validate:"required,max=45"`
	LastName     string `json:"last_name" validate:"required,max=45"`
	Phone        string `json:"phone" validate:"required,len=10,numeric"`
	Relationship string `json:"relationship" validate:"required,max=30"`
}

type studentRequest struct {
	FirstName         string                    `json:"first_name" validate:"required,max=45"`
	LastName          string                    `json:"last_name" validate:"required,max=45"`
	SecondLast        string                    `json:"second_last,omitempty" validate:"max=45"`
	BirthDate         time.Time                 `json:"birth_date" validate:"required"`
	TutorID           uint                      `json:"tutor_id" validate:"required"`
	School            string                    `json:"school,omitempty" validate:"max=100"`
	GroupIDs          []uint                    `json:"group_ids,omitempty"`
	EmergencyContacts []emergencyContactRequest `json:"emergency_contacts,omitempty" validate:"dive"`
}

func (h *PeopleHandler) ListStudents(c echo.Context) error {
	q := h.db.Preload("Tutor").Preload("Groups")
	if status := c.QueryParam("estado"); status != "" {
		q = q.Where("status = ?", status)
	}
	var students []models.Student
	if err := q.Order("first_name ASC, last_name ASC").Find(&students).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, students)
}

func (h *PeopleHandler) GetStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var student models.Student
	err = h.db.Preload("Tutor").Preload("Groups").Preload("EmergencyContacts").
		First(&student, id).Error
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, student)
}

func (h *PeopleHandler) CreateStudent(c echo.Context) error {
	var req studentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	student := models.Student{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		SecondLast: req.SecondLast,
		BirthDate:  req.BirthDate,
		TutorID:    req.TutorID,
		EnrolledAt: time.Now(),
		Status:     "activo",
		School:     req.School,
	}
	for _, ec := range req.EmergencyContacts {
		student.EmergencyContacts = append(student.EmergencyContacts, models.EmergencyContact{
			FirstName:    ec.FirstName,
			LastName:     ec.LastName,
			Phone:        ec.Phone,
			Relationship: ec.Relationship,
		})
	}
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&student).Error; err != nil {
			return err
		}
		if len(req.GroupIDs) == 0 {
			return nil
		}
		var groups []models.Group
		if err := tx.Find(&groups, req.GroupIDs).Error; err != nil {
			return err
		}
		return tx.Model(&student).Association("Groups").Replace(groups)
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, student)
}

// ---- Instructors ----

type instructorRequest struct {
	FirstName  string `json:"first_name" validate:"required,max=45"`
	LastName   string `json:"last_name" validate:"required,max=45"`
	SecondLast string `json:"second_last,omitempty" validate:"max=45"`
}

func (h *PeopleHandler) ListInstructors(c echo.Context) error {
	var instructors []models.Instructor
	if err := h.db.Preload("Groups").Order("first_name ASC, last_name ASC").Find(&instructors).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, instructors)
}

func (h *PeopleHandler) CreateInstructor(c echo.Context) error {
	var req instructorRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	instructor := models.Instructor{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		SecondLast: req.SecondLast,
	}
	if err := h.db.Create(&instructor).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, instructor)
}

// ---- Groups ----

type groupRequest struct {
	Name         string `json:"name" validate:"required,max=50"`
	Schedule     string `json:"schedule" validate:"required,max=20"`
	Days         string `json:"days" validate:"required,max=50"`
	Level        string `json:"level" validate:"required,max=30"`
	InstructorID *uint  `json:"instructor_id,omitempty"`
}

func (h *PeopleHandler) ListGroups(c echo.Context) error {
	var groups []models.Group
	if err := h.db.Preload("Instructor").Order("name ASC").Find(&groups).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, groups)
}

func (h *PeopleHandler) CreateGroup(c echo.Context) error {
	var req groupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	group := models.Group{
		Name:         req.Name,
		Schedule:     req.Schedule,
		Days:         req.Days,
		Level:        req.Level,
		InstructorID: req.InstructorID,
	}
	if err := h.db.Create(&group).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, group)
}
