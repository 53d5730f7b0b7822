package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Room struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"not null;uniqueIndex:idx_room_house_number,priority:1;index" json:"boarding_house_id"`
	RoomNumber      string          `gorm:"size:20;not null;uniqueIndex:idx_room_house_number,priority:2" json:"room_number"`
	RoomType        string          `gorm:"size:50" json:"room_type"`
	Capacity        int             `gorm:"not null;default:1" json:"capacity"`
	MonthlyRent     decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"monthly_rent"`
	Gender          GenderPolicy    `gorm:"size:10;not null;default:'mixed'" json:"gender"`
	Status          RoomStatus      `gorm:"size:20;not null;default:'available';index" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRoom struct {
	RoomNumber  string          `json:"room_number" binding:"required,max=20"`
	RoomType    string          `json:"room_type"`
	Capacity    int             `json:"capacity" binding:"required,min=1"`
	MonthlyRent decimal.Decimal `json:"monthly_rent"`
	Gender      GenderPolicy    `json:"gender"`
	Status      RoomStatus      `json:"status"`
	Notes       string          `json:"notes"`
}

type RoomWithOccupancy struct {
	Room
	Occupancy     int `json:"occupancy"`
	AvailableBeds int `json:"available_beds"`
}

// Accepts returns whether a student of gender g may live in the room.
func (r *Room) Accepts(g GenderPolicy) bool {
	if r.Gender == GenderMixed || r.Gender == "" {
		return true
	}
	return r.Gender == g
}

func (input *NewRoom) validate(ctx context.Context, boardingHouseId int, id int) error {
	input.RoomNumber = strings.TrimSpace(input.RoomNumber)
	if input.Gender == "" {
		input.Gender = GenderMixed
	}
	if input.Gender != GenderMale && input.Gender != GenderFemale && input.Gender != GenderMixed {
		return utils.NewValidationError("invalid gender %q", input.Gender)
	}
	if input.Status == "" {
		input.Status = RoomStatusAvailable
	}
	if input.Status != RoomStatusAvailable && input.Status != RoomStatusMaintenance {
		return utils.NewValidationError("invalid room status %q", input.Status)
	}
	if input.MonthlyRent.IsNegative() {
		return utils.NewValidationError("monthly rent cannot be negative")
	}
	input.MonthlyRent = utils.RoundMoney(input.MonthlyRent)
	return utils.ValidateUnique[Room](ctx, boardingHouseId, "room_number", input.RoomNumber, id)
}

// roomOccupancy counts active enrollments per room.
func roomOccupancy(tx *gorm.DB, roomIds []int) (map[int]int, error) {
	type row struct {
		RoomId int
		Count  int
	}
	var rows []row
	if len(roomIds) == 0 {
		return map[int]int{}, nil
	}
	err := tx.Model(&StudentEnrollment{}).
		Select("room_id, COUNT(*) AS count").
		Where("room_id IN ? AND status = ?", roomIds, EnrollmentStatusActive).
		Group("room_id").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[int]int, len(rows))
	for _, r := range rows {
		result[r.RoomId] = r.Count
	}
	return result, nil
}

func CreateRoom(ctx context.Context, input *NewRoom) (*Room, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, boardingHouseId, 0); err != nil {
		return nil, err
	}
	room := Room{
		BoardingHouseId: boardingHouseId,
		RoomNumber:      input.RoomNumber,
		RoomType:        input.RoomType,
		Capacity:        input.Capacity,
		MonthlyRent:     input.MonthlyRent,
		Gender:          input.Gender,
		Status:          input.Status,
		Notes:           input.Notes,
	}
	if err := config.GetDB().WithContext(ctx).Create(&room).Error; err != nil {
		return nil, err
	}
	return &room, nil
}

func UpdateRoom(ctx context.Context, id int, input *NewRoom) (*Room, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	room, err := utils.FetchModel[Room](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, boardingHouseId, id); err != nil {
		return nil, err
	}
	// the room row lock serializes this check with enrollments into the room
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(room, id).Error; err != nil {
			return err
		}
		occupancy, err := roomOccupancy(tx, []int{id})
		if err != nil {
			return err
		}
		if input.Capacity < occupancy[id] {
			return utils.NewValidationError("capacity %d is below current occupancy %d", input.Capacity, occupancy[id])
		}
		return tx.Model(room).Updates(map[string]interface{}{
			"RoomNumber":  input.RoomNumber,
			"RoomType":    input.RoomType,
			"Capacity":    input.Capacity,
			"MonthlyRent": input.MonthlyRent,
			"Gender":      input.Gender,
			"Status":      input.Status,
			"Notes":       input.Notes,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Room](ctx, boardingHouseId, id)
}

// DeleteRoom removes a room that never had an enrollment.
func DeleteRoom(ctx context.Context, id int) (*Room, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	room, err := utils.FetchModel[Room](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	var count int64
	if err := db.WithContext(ctx).Model(&StudentEnrollment{}).Where("room_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.NewValidationError("room %s has enrollment history, set it to maintenance instead", room.RoomNumber)
	}
	if err := db.WithContext(ctx).Delete(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}

func GetRoom(ctx context.Context, id int) (*RoomWithOccupancy, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	room, err := utils.FetchModel[Room](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	rooms, err := withOccupancy(ctx, []*Room{room})
	if err != nil {
		return nil, err
	}
	return rooms[0], nil
}

// ListRooms lists rooms with occupancy; onlyAvailable keeps rooms with a free bed.
func ListRooms(ctx context.Context, onlyAvailable bool) ([]*RoomWithOccupancy, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var rooms []*Room
	if err := config.GetDB().WithContext(ctx).Where("boarding_house_id = ?", boardingHouseId).Order("room_number").Find(&rooms).Error; err != nil {
		return nil, err
	}
	results, err := withOccupancy(ctx, rooms)
	if err != nil {
		return nil, err
	}
	if !onlyAvailable {
		return results, nil
	}
	filtered := make([]*RoomWithOccupancy, 0, len(results))
	for _, r := range results {
		if r.Status == RoomStatusAvailable && r.AvailableBeds > 0 {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func withOccupancy(ctx context.Context, rooms []*Room) ([]*RoomWithOccupancy, error) {
	ids := make([]int, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	occupancy, err := roomOccupancy(config.GetDB().WithContext(ctx), ids)
	if err != nil {
		return nil, err
	}
	results := make([]*RoomWithOccupancy, 0, len(rooms))
	for _, r := range rooms {
		free := r.Capacity - occupancy[r.ID]
		if free < 0 {
			free = 0
		}
		results = append(results, &RoomWithOccupancy{Room: *r, Occupancy: occupancy[r.ID], AvailableBeds: free})
	}
	return results, nil
}
