// seed-demo creates a boarding house filled with fake rooms, students, suppliers,
// enrollments, payments and expenses for local development and demos.
// Every write goes through the regular posting path, so the ledger stays balanced.
//
// Usage:
//
//	go run ./cmd/seed-demo --code=DEMO1 --rooms=10 --students=25 --seed=42
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/mmdatafocus/boarding_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var expenseAccounts = []string{
	models.SystemAccountUtilities,
	models.SystemAccountRepairs,
	models.SystemAccountFood,
	models.SystemAccountGeneralExpenses,
}

func main() {
	seed := flag.Uint64("seed", 0, "Random seed (0: random)")
	code := flag.String("code", "DEMO", "Code of the boarding house to create")
	rooms := flag.Int("rooms", 8, "Number of rooms")
	students := flag.Int("students", 20, "Number of students")
	suppliers := flag.Int("suppliers", 4, "Number of suppliers")
	expenses := flag.Int("expenses", 10, "Number of expenses")
	flag.Parse()

	if *rooms < 1 || *students < 0 || *suppliers < 0 || *expenses < 0 {
		fmt.Fprintln(os.Stderr, "--rooms must be >= 1 and the other counts >= 0")
		os.Exit(2)
	}

	logger := logrus.New()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		if err := config.ConnectRedis(); err != nil {
			logger.Warn("redis unavailable; report caches are not invalidated: " + err.Error())
		}
	}

	f := gofakeit.New(*seed)
	ctx := utils.SetIsAdminInContext(utils.NewMaintenanceContext(context.Background(), "seed-demo"), true)

	house, err := models.CreateBoardingHouse(ctx, &models.NewBoardingHouse{
		Name:    f.Company() + " Hostel",
		Code:    *code,
		Address: f.Street() + ", " + f.City(),
		Phone:   zwPhone(f),
	})
	if err != nil {
		fail("create boarding house", err)
	}
	fmt.Printf("boarding_house_id=%d code=%s\n", house.ID, house.Code)

	houseCtx := workflow.HouseMaintenanceContext(context.Background(), "seed-demo", house.ID)
	s := seeder{ctx: houseCtx, f: f, logger: logger}

	roomList := s.rooms(*rooms)
	studentList := s.students(*students)
	s.enroll(studentList, roomList)
	supplierList := s.suppliers(*suppliers)
	s.expenses(*expenses, supplierList)

	fmt.Printf("rooms=%d students=%d suppliers=%d\n", len(roomList), len(studentList), len(supplierList))
}

type seeder struct {
	ctx    context.Context
	f      *gofakeit.Faker
	logger *logrus.Logger
}

func (s seeder) rooms(n int) []*models.Room {
	genders := []models.GenderPolicy{models.GenderMale, models.GenderFemale, models.GenderMixed}
	out := make([]*models.Room, 0, n)
	for i := 0; i < n; i++ {
		room, err := models.CreateRoom(s.ctx, &models.NewRoom{
			RoomNumber:  fmt.Sprintf("%c%02d", 'A'+rune(i/20), i%20+1),
			RoomType:    s.f.RandomString([]string{"single", "double", "dorm"}),
			Capacity:    s.f.Number(1, 4),
			MonthlyRent: decimal.NewFromInt(int64(s.f.Number(8, 30) * 5)),
			Gender:      genders[i%len(genders)],
			Status:      models.RoomStatusAvailable,
		})
		if err != nil {
			fail("create room", err)
		}
		out = append(out, room)
	}
	return out
}

func (s seeder) students(n int) []*models.Student {
	out := make([]*models.Student, 0, n)
	for i := 0; i < n; i++ {
		gender := models.GenderMale
		if s.f.Bool() {
			gender = models.GenderFemale
		}
		student, err := models.CreateStudent(s.ctx, &models.NewStudent{
			FirstName:     s.f.FirstName(),
			LastName:      s.f.LastName(),
			Gender:        gender,
			Phone:         zwPhone(s.f),
			Email:         strings.ToLower(s.f.Email()),
			GuardianName:  s.f.Name(),
			GuardianPhone: zwPhone(s.f),
			Institution:   s.f.RandomString([]string{"University of Zimbabwe", "NUST", "Harare Polytechnic", "Midlands State University"}),
			Status:        models.StudentStatusActive,
		})
		if err != nil {
			fail("create student", err)
		}
		out = append(out, student)
	}
	return out
}

// enroll places each student in the first room that accepts them and pays part
// of the opening invoice. Students without a free bed stay unenrolled.
func (s seeder) enroll(students []*models.Student, rooms []*models.Room) {
	start := time.Now().AddDate(0, -1, 0)
	start = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	adminFee := decimal.NewFromInt(10)
	for i, student := range students {
		var result *models.EnrollmentResult
		for j := range rooms {
			room := rooms[(i+j)%len(rooms)]
			r, err := models.EnrollStudent(s.ctx, student.ID, &models.NewEnrollment{
				RoomId:    room.ID,
				StartDate: start,
				AdminFee:  &adminFee,
			})
			if err == nil {
				result = r
				break
			}
		}
		if result == nil {
			s.logger.Infof("no free bed for student %s", student.StudentNumber)
			continue
		}
		if result.Invoice == nil || s.f.Number(1, 4) == 1 {
			continue
		}
		amount := result.Invoice.Amount
		if s.f.Bool() {
			amount = amount.Div(decimal.NewFromInt(2)).Round(2)
		}
		_, err := models.RecordPayment(s.ctx, &models.NewStudentPayment{
			StudentId:   student.ID,
			Amount:      amount,
			PaymentDate: start.AddDate(0, 0, s.f.Number(0, 20)),
			Method:      models.StudentPaymentMethod(s.f.RandomString([]string{"cash", "bank", "mobile_money"})),
			Reference:   s.f.Numerify("RCPT-######"),
		})
		if err != nil {
			fail("record payment", err)
		}
	}
}

func (s seeder) suppliers(n int) []*models.Supplier {
	out := make([]*models.Supplier, 0, n)
	for i := 0; i < n; i++ {
		supplier, err := models.CreateSupplier(s.ctx, &models.NewSupplier{
			Name:          s.f.Company(),
			ContactPerson: s.f.Name(),
			Phone:         zwPhone(s.f),
			Email:         strings.ToLower(s.f.Email()),
			Category:      s.f.RandomString([]string{"groceries", "utilities", "maintenance", "cleaning"}),
			Address:       s.f.Street() + ", " + s.f.City(),
		})
		if err != nil {
			fail("create supplier", err)
		}
		out = append(out, supplier)
	}
	return out
}

func (s seeder) expenses(n int, suppliers []*models.Supplier) {
	db := config.GetDB().WithContext(s.ctx)
	houseId, _ := utils.GetBoardingHouseIdFromContext(s.ctx)
	accounts := make([]int, 0, len(expenseAccounts))
	for _, code := range expenseAccounts {
		account, err := models.GetSystemAccount(db, houseId, code)
		if err != nil {
			fail("load expense account", err)
		}
		accounts = append(accounts, account.ID)
	}
	for i := 0; i < n; i++ {
		input := &models.NewExpense{
			ExpenseDate:   time.Now().AddDate(0, 0, -s.f.Number(0, 30)),
			AccountId:     accounts[i%len(accounts)],
			Amount:        decimal.NewFromFloat(s.f.Price(5, 250)).Round(2),
			PaymentMethod: models.ExpensePaymentCash,
			Description:   s.f.ProductName(),
			Reference:     s.f.Numerify("INV-#####"),
		}
		if len(suppliers) > 0 && i%2 == 0 {
			input.SupplierId = suppliers[i%len(suppliers)].ID
			input.PaymentMethod = models.ExpensePaymentCredit
		}
		if _, err := models.RecordExpense(s.ctx, input); err != nil {
			fail("record expense", err)
		}
	}
}

// zwPhone returns an Econet style mobile number.
func zwPhone(f *gofakeit.Faker) string {
	return f.Numerify("+26377#######")
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", step, err)
	os.Exit(1)
}
