package models

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"gorm.io/gorm"
)

type Student struct {
	ID              int           `gorm:"primary_key" json:"id"`
	BoardingHouseId int           `gorm:"not null;uniqueIndex:idx_student_house_number,priority:1;index" json:"boarding_house_id"`
	StudentNumber   string        `gorm:"size:40;not null;uniqueIndex:idx_student_house_number,priority:2" json:"student_number"`
	FirstName       string        `gorm:"size:100;not null" json:"first_name"`
	LastName        string        `gorm:"size:100;not null" json:"last_name"`
	Gender          GenderPolicy  `gorm:"size:10;not null" json:"gender"`
	Phone           string        `gorm:"size:30" json:"phone"`
	Email           string        `gorm:"size:100" json:"email"`
	GuardianName    string        `gorm:"size:100" json:"guardian_name"`
	GuardianPhone   string        `gorm:"size:30" json:"guardian_phone"`
	Institution     string        `gorm:"size:150" json:"institution"`
	PhotoUrl        string        `gorm:"size:500" json:"photo_url"`
	Status          StudentStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStudent struct {
	FirstName     string        `json:"first_name" binding:"required,max=100"`
	LastName      string        `json:"last_name" binding:"required,max=100"`
	Gender        GenderPolicy  `json:"gender" binding:"required"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email" binding:"omitempty,email"`
	GuardianName  string        `json:"guardian_name"`
	GuardianPhone string        `json:"guardian_phone"`
	Institution   string        `json:"institution"`
	Status        StudentStatus `json:"status"`
}

type StudentFilter struct {
	Status StudentStatus
	Search string
	PageInput
}

func (s *Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// uploadObject stores an object in the bucket. Replaced in tests.
var uploadObject = utils.UploadBytesToGCS

func (input *NewStudent) validate() error {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if input.Gender != GenderMale && input.Gender != GenderFemale {
		return utils.NewValidationError("gender must be M or F")
	}
	if input.Status == "" {
		input.Status = StudentStatusActive
	}
	switch input.Status {
	case StudentStatusActive, StudentStatusInactive, StudentStatusGraduated:
	default:
		return utils.NewValidationError("invalid student status %q", input.Status)
	}
	region := config.DefaultPhoneRegion()
	phone, err := utils.NormalizePhoneNumber(input.Phone, region)
	if err != nil {
		return err
	}
	input.Phone = phone
	guardianPhone, err := utils.NormalizePhoneNumber(input.GuardianPhone, region)
	if err != nil {
		return err
	}
	input.GuardianPhone = guardianPhone
	return nil
}

// nextStudentNumber returns STU-<house code>-<seq>; the house row is locked meanwhile.
func nextStudentNumber(tx *gorm.DB, boardingHouseId int) (string, error) {
	var house BoardingHouse
	if err := forUpdate(tx).First(&house, boardingHouseId).Error; err != nil {
		return "", err
	}
	var count int64
	if err := tx.Model(&Student{}).Where("boarding_house_id = ?", boardingHouseId).Count(&count).Error; err != nil {
		return "", err
	}
	for seq := count + 1; ; seq++ {
		number := fmt.Sprintf("STU-%s-%04d", house.Code, seq)
		var exists int64
		if err := tx.Model(&Student{}).Where("boarding_house_id = ? AND student_number = ?", boardingHouseId, number).Count(&exists).Error; err != nil {
			return "", err
		}
		if exists == 0 {
			return number, nil
		}
	}
}

func CreateStudent(ctx context.Context, input *NewStudent) (*Student, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	student := Student{
		BoardingHouseId: boardingHouseId,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		Gender:          input.Gender,
		Phone:           input.Phone,
		Email:           input.Email,
		GuardianName:    input.GuardianName,
		GuardianPhone:   input.GuardianPhone,
		Institution:     input.Institution,
		Status:          input.Status,
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextStudentNumber(tx, boardingHouseId)
		if err != nil {
			return err
		}
		student.StudentNumber = number
		if err := tx.Create(&student).Error; err != nil {
			return err
		}
		return tx.Create(&StudentAccountBalance{
			BoardingHouseId: boardingHouseId,
			StudentId:       student.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func UpdateStudent(ctx context.Context, id int, input *NewStudent) (*Student, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	student, err := utils.FetchModel[Student](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if input.Gender != student.Gender || input.Status != StudentStatusActive {
		active, err := activeEnrollment(config.GetDB().WithContext(ctx), student.ID)
		if err != nil {
			return nil, err
		}
		if active != nil && input.Status != StudentStatusActive {
			return nil, utils.NewValidationError("end the active enrollment before changing status to %s", input.Status)
		}
		if active != nil && input.Gender != student.Gender {
			return nil, utils.NewValidationError("cannot change gender while enrolled")
		}
	}
	err = config.GetDB().WithContext(ctx).Model(student).Updates(map[string]interface{}{
		"FirstName":     input.FirstName,
		"LastName":      input.LastName,
		"Gender":        input.Gender,
		"Phone":         input.Phone,
		"Email":         input.Email,
		"GuardianName":  input.GuardianName,
		"GuardianPhone": input.GuardianPhone,
		"Institution":   input.Institution,
		"Status":        input.Status,
	}).Error
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Student](ctx, boardingHouseId, id)
}

func GetStudent(ctx context.Context, id int) (*Student, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Student](ctx, boardingHouseId, id)
}

func ListStudents(ctx context.Context, filter StudentFilter) (*Paginated[*Student], error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Model(&Student{}).Where("boarding_house_id = ?", boardingHouseId)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		q = q.Where("first_name LIKE ? OR last_name LIKE ? OR student_number LIKE ? OR phone LIKE ?", like, like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	page, pageSize := filter.normalize()
	var items []*Student
	if err := q.Order("last_name, first_name, id").Offset(filter.offset()).Limit(pageSize).Find(&items).Error; err != nil {
		return nil, err
	}
	return &Paginated[*Student]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// UploadStudentPhoto resizes the image to StudentPhotoWidth and stores it in the bucket.
func UploadStudentPhoto(ctx context.Context, id int, file io.Reader) (*Student, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	student, err := utils.FetchModel[Student](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	data, err := utils.PrepareImageUpload(file, utils.StudentPhotoWidth)
	if err != nil {
		return nil, err
	}
	objectName := fmt.Sprintf("students/%d/%d/%s.jpg", boardingHouseId, student.ID, utils.GenerateUniqueFilename())
	if err := uploadObject(ctx, objectName, data, "image/jpeg"); err != nil {
		return nil, err
	}
	previous := student.PhotoUrl
	url := utils.PublicObjectURL(objectName)
	if err := config.GetDB().WithContext(ctx).Model(student).Update("photo_url", url).Error; err != nil {
		return nil, err
	}
	if old := utils.ObjectNameFromURL(previous); old != "" {
		if err := utils.DeleteObjectFromGCS(ctx, old); err != nil {
			config.LogError(config.GetLogger(), "student.go", "UploadStudentPhoto", "delete previous photo", old, err)
		}
	}
	student.PhotoUrl = url
	return student, nil
}
