package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/courseloom/marketplace/utils"
)

// Course rows are authored elsewhere, the marketplace core only reads them.
// Price is in decimal dollars and converted to cents at the payment boundary.
type Course struct {
	ID          string    `gorm:"primaryKey;->"`
	Title       string    `gorm:"->"`
	Description string    `gorm:"->"`
	ImageURL    string    `gorm:"->"`
	Price       float64   `gorm:"->"`
	CreatedAt   time.Time `gorm:"->"`
	UpdatedAt   time.Time `gorm:"->"`
}

func (store *Store) FetchCourses() utils.Result[[]Course] {
	var courses []Course

	result := store.db.Connection.
		Table("courses").
		Order("created_at ASC").
		Find(&courses)

	if result.Error != nil {
		return utils.FailedResult[[]Course](result.Error)
	}

	return utils.SuccessResult(courses)
}

func (store *Store) FetchCourse(id string) utils.Result[*Course] {
	var course Course

	result := store.db.Connection.
		Table("courses").
		Where("id = ?", id).
		Limit(1).
		Find(&course)

	if result.Error != nil {
		return failedCourseResult(result.Error)
	}
	if course.ID == "" {
		return failedCourseResult(gorm.ErrRecordNotFound)
	}

	return utils.SuccessResult(&course)
}

func failedCourseResult(err error) utils.Result[*Course] {
	result := utils.FailedResult[*Course](err)

	if err.Error() == gorm.ErrRecordNotFound.Error() {
		result = result.
			NonRetryable().
			NonCapturable().
			AddErrorDetails("course_not_found", ERROR_NOT_FOUND)
	}

	return result
}
