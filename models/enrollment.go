package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StudentEnrollment struct {
	ID              int              `gorm:"primary_key" json:"id"`
	BoardingHouseId int              `gorm:"index;not null" json:"boarding_house_id"`
	StudentId       int              `gorm:"index;not null" json:"student_id"`
	RoomId          int              `gorm:"index;not null" json:"room_id"`
	StartDate       time.Time        `gorm:"not null" json:"start_date"`
	EndDate         *time.Time       `json:"end_date"`
	MonthlyRent     decimal.Decimal  `gorm:"type:decimal(20,2);not null;default:0" json:"monthly_rent"`
	AdminFee        decimal.Decimal  `gorm:"type:decimal(20,2);not null;default:0" json:"admin_fee"`
	Status          EnrollmentStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	TransferredTo   int              `gorm:"not null;default:0" json:"transferred_to"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	Room            *Room            `gorm:"foreignKey:RoomId" json:"room,omitempty"`
}

type NewEnrollment struct {
	RoomId      int              `json:"room_id" binding:"required"`
	StartDate   time.Time        `json:"start_date" binding:"required"`
	MonthlyRent *decimal.Decimal `json:"monthly_rent"`
	AdminFee    *decimal.Decimal `json:"admin_fee"`
}

type EndEnrollmentInput struct {
	EndDate time.Time `json:"end_date" binding:"required"`
}

type TransferEnrollmentInput struct {
	RoomId int       `json:"room_id" binding:"required"`
	Date   time.Time `json:"date" binding:"required"`
}

type EnrollmentResult struct {
	Enrollment *StudentEnrollment `json:"enrollment"`
	Invoice    *StudentInvoice    `json:"invoice,omitempty"`
}

func activeEnrollment(tx *gorm.DB, studentId int) (*StudentEnrollment, error) {
	var enrollment StudentEnrollment
	err := tx.Where("student_id = ? AND status = ?", studentId, EnrollmentStatusActive).First(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &enrollment, nil
}

// checkRoomHasBed locks the room and verifies status, gender and a free bed.
func checkRoomHasBed(tx *gorm.DB, boardingHouseId int, roomId int, student *Student) (*Room, error) {
	var room Room
	err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&room, roomId).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewValidationError("room not found")
		}
		return nil, err
	}
	if room.Status != RoomStatusAvailable {
		return nil, utils.NewValidationError("room %s is under %s", room.RoomNumber, room.Status)
	}
	if !room.Accepts(student.Gender) {
		return nil, utils.NewValidationError("room %s is reserved for gender %s", room.RoomNumber, room.Gender)
	}
	var occupied int64
	if err := tx.Model(&StudentEnrollment{}).Where("room_id = ? AND status = ?", room.ID, EnrollmentStatusActive).Count(&occupied).Error; err != nil {
		return nil, err
	}
	if int(occupied) >= room.Capacity {
		return nil, utils.NewValidationError("room %s is full (%d/%d)", room.RoomNumber, occupied, room.Capacity)
	}
	return &room, nil
}

func enrollTx(ctx context.Context, tx *gorm.DB, boardingHouseId int, student *Student, input *NewEnrollment) (*EnrollmentResult, error) {
	if student.Status != StudentStatusActive {
		return nil, utils.NewValidationError("student %s is %s", student.StudentNumber, student.Status)
	}
	current, err := activeEnrollment(tx, student.ID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return nil, utils.NewConflictError("student %s already has an active enrollment", student.StudentNumber)
	}
	room, err := checkRoomHasBed(tx, boardingHouseId, input.RoomId, student)
	if err != nil {
		return nil, err
	}

	rent := room.MonthlyRent
	if input.MonthlyRent != nil {
		rent = *input.MonthlyRent
	}
	adminFee := decimal.Zero
	if input.AdminFee != nil {
		adminFee = *input.AdminFee
	}
	if rent.IsNegative() || adminFee.IsNegative() {
		return nil, utils.NewValidationError("rent and admin fee cannot be negative")
	}

	enrollment := StudentEnrollment{
		BoardingHouseId: boardingHouseId,
		StudentId:       student.ID,
		RoomId:          room.ID,
		StartDate:       utils.StartOfDay(input.StartDate),
		MonthlyRent:     utils.RoundMoney(rent),
		AdminFee:        utils.RoundMoney(adminFee),
		Status:          EnrollmentStatusActive,
	}
	if err := tx.Create(&enrollment).Error; err != nil {
		return nil, err
	}
	enrollment.Room = room

	result := &EnrollmentResult{Enrollment: &enrollment}
	if enrollment.AdminFee.IsPositive() {
		income, err := GetSystemAccount(tx, boardingHouseId, SystemAccountAdminFeeIncome)
		if err != nil {
			return nil, err
		}
		invoice, err := createInvoiceTx(ctx, tx, boardingHouseId, student, &NewStudentInvoice{
			StudentId:       student.ID,
			EnrollmentId:    enrollment.ID,
			InvoiceType:     InvoiceTypeAdminFee,
			Description:     "Admin fee, room " + room.RoomNumber,
			Amount:          enrollment.AdminFee,
			InvoiceDate:     enrollment.StartDate,
			DueDate:         enrollment.StartDate,
			IncomeAccountId: income.ID,
		})
		if err != nil {
			return nil, err
		}
		result.Invoice = invoice
	}
	return result, nil
}

// EnrollStudent places the student in a room. An admin fee is invoiced immediately.
func EnrollStudent(ctx context.Context, studentId int, input *NewEnrollment) (*EnrollmentResult, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if input.StartDate.IsZero() {
		return nil, utils.NewValidationError("start date is required")
	}
	var result *EnrollmentResult
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		student, err := utils.FetchModelTx[Student](tx, boardingHouseId, studentId)
		if err != nil {
			return err
		}
		result, err = enrollTx(ctx, tx, boardingHouseId, student, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func endEnrollmentTx(tx *gorm.DB, boardingHouseId int, id int, endDate time.Time) (*StudentEnrollment, error) {
	var enrollment StudentEnrollment
	err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&enrollment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if enrollment.Status != EnrollmentStatusActive {
		return nil, utils.NewConflictError("enrollment %d has already ended", id)
	}
	endDate = utils.StartOfDay(endDate)
	if endDate.Before(enrollment.StartDate) {
		return nil, utils.NewValidationError("end date is before the start date")
	}
	if err := tx.Model(&enrollment).Updates(map[string]interface{}{
		"status":   EnrollmentStatusEnded,
		"end_date": endDate,
	}).Error; err != nil {
		return nil, err
	}
	enrollment.Status = EnrollmentStatusEnded
	enrollment.EndDate = &endDate
	return &enrollment, nil
}

func EndEnrollment(ctx context.Context, id int, endDate time.Time) (*StudentEnrollment, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if endDate.IsZero() {
		return nil, utils.NewValidationError("end date is required")
	}
	var result *StudentEnrollment
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var err error
		result, err = endEnrollmentTx(tx, boardingHouseId, id, endDate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransferRoom ends the enrollment on date and enrolls the student in the new room from the same date.
// The new enrollment takes the new room's rent; no admin fee is charged.
func TransferRoom(ctx context.Context, id int, input *TransferEnrollmentInput) (*EnrollmentResult, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if input.Date.IsZero() {
		return nil, utils.NewValidationError("transfer date is required")
	}
	var result *EnrollmentResult
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		old, err := endEnrollmentTx(tx, boardingHouseId, id, input.Date)
		if err != nil {
			return err
		}
		if old.RoomId == input.RoomId {
			return utils.NewValidationError("student is already in this room")
		}
		student, err := utils.FetchModelTx[Student](tx, boardingHouseId, old.StudentId)
		if err != nil {
			return err
		}
		result, err = enrollTx(ctx, tx, boardingHouseId, student, &NewEnrollment{
			RoomId:    input.RoomId,
			StartDate: input.Date,
		})
		if err != nil {
			return err
		}
		return tx.Model(old).Update("transferred_to", result.Enrollment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ListStudentEnrollments(ctx context.Context, studentId int) ([]*StudentEnrollment, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var enrollments []*StudentEnrollment
	err = config.GetDB().WithContext(ctx).Preload("Room").
		Where("boarding_house_id = ? AND student_id = ?", boardingHouseId, studentId).
		Order("start_date DESC, id DESC").Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}
