package database

import (
	"context"
	"log"

	"github.com/anjiri1684/drivesmart/models"
	"github.com/anjiri1684/drivesmart/services"
	"gorm.io/gorm"
)

const (
	demoStudentEmail    = "student@drivesmart.local"
	demoStudentPassword = "student123"
)

type seedQuestion struct {
	text, correct, explanation, image string
	options                           []string
}

var demoCatalogue = map[string][]seedQuestion{
	"Road Signs": {
		{text: "What does a red octagonal sign mean?", options: []string{"Yield", "Stop", "No entry", "Parking"}, correct: "Stop", explanation: "An octagon is reserved for the stop sign.", image: "signs/stop.png"},
		{text: "A triangular sign with a red border is a...", options: []string{"Warning sign", "Mandatory sign", "Information sign"}, correct: "Warning sign"},
		{text: "A round blue sign usually indicates...", options: []string{"A prohibition", "A mandatory instruction", "A warning"}, correct: "A mandatory instruction"},
		{text: "What does a white bar on a red circle mean?", options: []string{"No entry", "One way", "End of restriction"}, correct: "No entry", image: "signs/no_entry.png"},
		{text: "An inverted triangle means...", options: []string{"Stop", "Give way", "Roundabout ahead"}, correct: "Give way"},
	},
	"Traffic Rules": {
		{text: "What is the default urban speed limit?", options: []string{"50 km/h", "60 km/h", "70 km/h"}, correct: "60 km/h", explanation: "Unless signs say otherwise."},
		{text: "Who has priority at an unmarked intersection?", options: []string{"Vehicle on the right", "Vehicle on the left", "The larger vehicle"}, correct: "Vehicle on the right"},
		{text: "When must dipped headlights be used?", options: []string{"Only at night", "At night and in poor visibility", "Never in towns"}, correct: "At night and in poor visibility"},
		{text: "Minimum following distance in dry conditions?", options: []string{"1 second", "2 seconds", "5 seconds"}, correct: "2 seconds"},
	},
}

// SeedDemoData loads a small catalogue, a paid package and a demo student
// holding access to it. It is a no-op once questions exist.
func SeedDemoData(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.Question{}).Count(&count).Error; err != nil {
		log.Printf("🔥 Failed to check question catalogue: %v", err)
		return
	}
	if count > 0 {
		log.Println("Question catalogue already seeded.")
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for topic, qs := range demoCatalogue {
			for _, sq := range qs {
				q := models.Question{
					QuestionText:  sq.text,
					Options:       sq.options,
					CorrectAnswer: sq.correct,
					Topic:         topic,
				}
				if sq.explanation != "" {
					e := sq.explanation
					q.Explanation = &e
				}
				if sq.image != "" {
					img := sq.image
					q.ImagePath = &img
				}
				if err := tx.Create(&q).Error; err != nil {
					return err
				}
			}
		}
		pkg := models.TestPackage{
			Name:          "Road Signs Starter",
			Price:         49000,
			QuestionCount: 5,
			DurationDays:  30,
			MaxAttempts:   10,
			Topic:         "Road Signs",
			IsActive:      true,
		}
		return tx.Create(&pkg).Error
	})
	if err != nil {
		log.Printf("🔥 Failed to seed demo catalogue: %v", err)
		return
	}

	if _, err := ensureUser(db, "Demo Student", demoStudentEmail, demoStudentPassword, "student"); err != nil {
		log.Printf("🔥 Failed to seed demo student: %v", err)
		return
	}
	var student models.User
	if err := db.Where("email = ?", demoStudentEmail).First(&student).Error; err != nil {
		log.Printf("🔥 Failed to load demo student: %v", err)
		return
	}
	var pkg models.TestPackage
	if err := db.Where("topic = ?", "Road Signs").First(&pkg).Error; err != nil {
		log.Printf("🔥 Failed to load demo package: %v", err)
		return
	}
	if _, err := services.NewAccessService(db).Grant(context.Background(), student.ID, pkg.ID); err != nil {
		log.Printf("🔥 Failed to grant demo access: %v", err)
		return
	}
	log.Println("✅ Demo catalogue seeded successfully")
}
