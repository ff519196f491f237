package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Role is the caller role supplied by the identity layer.
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleAdmin       Role = "admin"
	RoleInstitution Role = "institution"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleAdmin, RoleInstitution:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// CropEntry tracks a user's progress through one crop pipeline.
type CropEntry struct {
	Name              string     `bson:"name" json:"cropName"`
	Stage             string     `bson:"stage,omitempty" json:"stage,omitempty"`
	CurrentStageIndex int        `bson:"currentStageIndex,omitempty" json:"currentStageIndex"`
	LastMissionDate   *time.Time `bson:"lastMissionDate,omitempty" json:"lastMissionDate,omitempty"`
}

// StageIndex returns the current pipeline stage, defaulting to 1 when unset.
func (c CropEntry) StageIndex() int {
	if c.CurrentStageIndex < 1 {
		return 1
	}
	return c.CurrentStageIndex
}

// ActivityStats are counters maintained outside the mission flow and read by badge criteria.
type ActivityStats struct {
	CommunityPosts           int `bson:"communityPosts" json:"communityPosts"`
	CommunityReplies         int `bson:"communityReplies" json:"communityReplies"`
	LearningModulesCompleted int `bson:"learningModulesCompleted" json:"learningModulesCompleted"`
	BestQuizScore            int `bson:"bestQuizScore" json:"bestQuizScore"`
}

// User is a farmer (or staff) profile as seen by the engine.
type User struct {
	Base              `bson:",inline"`
	Name              string        `bson:"name" json:"name"`
	Role              Role          `bson:"role" json:"role"`
	EcoScore          int           `bson:"ecoScore" json:"ecoScore"`
	Credits           int           `bson:"credits" json:"credits"`
	CurrentStreakDays int           `bson:"currentStreakDays" json:"currentStreakDays"`
	LongestStreakDays int           `bson:"longestStreakDays" json:"longestStreakDays"`
	LastCheckInDate   *time.Time    `bson:"lastCheckInDate,omitempty" json:"lastCheckInDate,omitempty"`
	Badges            []string      `bson:"badges" json:"badges"`
	Crops             []CropEntry   `bson:"crops" json:"crops"`
	State             string        `bson:"state,omitempty" json:"state,omitempty"`
	District          string        `bson:"district,omitempty" json:"district,omitempty"`
	SubDistrict       string        `bson:"subDistrict,omitempty" json:"subDistrict,omitempty"`
	Village           string        `bson:"village,omitempty" json:"village,omitempty"`
	FarmLocation      *GeoPoint     `bson:"farmLocation,omitempty" json:"farmLocation,omitempty"`
	Stats             ActivityStats `bson:"stats" json:"stats"`
	CreatedAt         time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// HasBadge reports whether the badge id is already earned.
func (u *User) HasBadge(id string) bool {
	for _, b := range u.Badges {
		if b == id {
			return true
		}
	}
	return false
}

// FindCrop returns the position of the named crop in u.Crops, matching case-insensitively, or -1.
func (u *User) FindCrop(name string) int {
	key := CropKey(name)
	for i, c := range u.Crops {
		if CropKey(c.Name) == key {
			return i
		}
	}
	return -1
}

// CropKey normalises a crop name for lookups.
func CropKey(name string) string {
	// A Caser keeps state, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(name))
}
