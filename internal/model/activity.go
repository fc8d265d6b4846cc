package model

import "time"

type ActivityKind string

const (
	ActivityWorkshop ActivityKind = "workshop"
	ActivityGroup    ActivityKind = "group"
	ActivityCourse   ActivityKind = "course"
	ActivityEvent    ActivityKind = "event"
)

// Activity is an institute offering such as a workshop or support group.
type Activity struct {
	Base
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	Kind        ActivityKind `db:"kind" json:"kind"`
	StartsAt    time.Time    `db:"starts_at" json:"starts_at"`
	EndsAt      time.Time    `db:"ends_at" json:"ends_at"`
	Location    string       `db:"location" json:"location,omitempty"`
	Capacity    int          `db:"capacity" json:"capacity"`
	Price       int64        `db:"price" json:"price"`
	ImageURL    string       `db:"image_url" json:"image_url,omitempty"`
	Active      bool         `db:"active" json:"active"`
}

type CreateActivityRequest struct {
	Title       string       `json:"title" binding:"required,max=200"`
	Description string       `json:"description" binding:"max=10000"`
	Kind        ActivityKind `json:"kind" binding:"required,oneof=workshop group course event"`
	StartsAt    time.Time    `json:"starts_at" binding:"required"`
	EndsAt      time.Time    `json:"ends_at" binding:"required"`
	Location    string       `json:"location" binding:"max=200"`
	Capacity    int          `json:"capacity" binding:"gte=0"`
	Price       int64        `json:"price" binding:"gte=0"`
	ImageURL    string       `json:"image_url" binding:"omitempty,url"`
}

type UpdateActivityRequest struct {
	Title       *string       `json:"title" binding:"omitempty,max=200"`
	Description *string       `json:"description" binding:"omitempty,max=10000"`
	Kind        *ActivityKind `json:"kind" binding:"omitempty,oneof=workshop group course event"`
	StartsAt    *time.Time    `json:"starts_at"`
	EndsAt      *time.Time    `json:"ends_at"`
	Location    *string       `json:"location" binding:"omitempty,max=200"`
	Capacity    *int          `json:"capacity" binding:"omitempty,gte=0"`
	Price       *int64        `json:"price" binding:"omitempty,gte=0"`
	ImageURL    *string       `json:"image_url" binding:"omitempty,url"`
	Active      *bool         `json:"active"`
}

type ActivityFilter struct {
	Kind           ActivityKind `form:"kind"`
	UpcomingAfter  *time.Time   `form:"-"`
	IncludeDeleted bool         `form:"include_inactive"`
}
