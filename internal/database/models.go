package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 订阅计划取值。"premium" 仅在 CurrentPeriodEnd 未过期时生效，见 IsPremium。
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// Resume 表示用户创建或 AI 生成的一份简历。
// UserID 来自外部身份提供方的令牌，本服务不保存用户表。
type Resume struct {
	gorm.Model
	UserID      uint   `gorm:"index"`
	Title       string `gorm:"size:255"`
	Description string `gorm:"size:1024"`
	FirstName   string `gorm:"size:128"`
	LastName    string `gorm:"size:128"`
	JobTitle    string `gorm:"size:255"`
	City        string `gorm:"size:128"`
	Country     string `gorm:"size:128"`
	Phone       string `gorm:"size:64"`
	Email       string `gorm:"size:255"`
	Summary     string `gorm:"type:text"`

	// 外观设置，由前端编辑器写入。
	Color       string `gorm:"size:16"`
	BorderStyle string `gorm:"size:32"`
	Template    string `gorm:"size:64"`

	// 简历据以裁剪的职位描述，以及原始 CV / 照片在对象存储中的 Key。
	JobDescription string `gorm:"type:text"`
	CVFileKey      string `gorm:"size:512"`
	PhotoKey       string `gorm:"size:512"`

	// AI 分析结果（可为空）。数组以 JSONB 存储，不做序列化字符串。
	Skills            datatypes.JSON `gorm:"type:jsonb"`
	MatchingPoints    datatypes.JSON `gorm:"type:jsonb"`
	PrioritizedSkills datatypes.JSON `gorm:"type:jsonb"`
	AnalysisReason    *string        `gorm:"type:text"`

	WorkExperiences []WorkExperience `gorm:"constraint:OnDelete:CASCADE"`
	Educations      []Education      `gorm:"constraint:OnDelete:CASCADE"`
}

// WorkExperience 归属于一份简历，保存时整体替换（先删后建）。
type WorkExperience struct {
	gorm.Model
	ResumeID    uint   `gorm:"index"`
	Position    string `gorm:"size:255"`
	Company     string `gorm:"size:255"`
	StartDate   *time.Time
	EndDate     *time.Time
	Description string `gorm:"type:text"`
	SortOrder   int
}

// Education 归属于一份简历，保存时整体替换（先删后建）。
type Education struct {
	gorm.Model
	ResumeID    uint   `gorm:"index"`
	Degree      string `gorm:"size:255"`
	School      string `gorm:"size:255"`
	StartDate   *time.Time
	EndDate     *time.Time
	Description string `gorm:"type:text"`
	SortOrder   int
}

// ResumeGroup 是用户自定义的简历分组。ResumeIDs 是简历 ID 列表（JSONB），
// 不是外键关系；删除简历时会显式从每个分组中剔除。
type ResumeGroup struct {
	gorm.Model
	UserID    uint           `gorm:"index"`
	Name      string         `gorm:"size:255"`
	ResumeIDs datatypes.JSON `gorm:"type:jsonb"`
}

// UserUsage 记录免费额度计数，首次读取时惰性创建。
type UserUsage struct {
	gorm.Model
	UserID            uint `gorm:"uniqueIndex"`
	ResumeCount       int
	AIGenerationCount int
}

// UserSubscription 保存计费商侧的订阅状态，由 webhook 更新。
type UserSubscription struct {
	gorm.Model
	UserID            uint   `gorm:"uniqueIndex"`
	Plan              string `gorm:"size:32;default:free"`
	CustomerID        string `gorm:"size:255"`
	SubscriptionID    string `gorm:"size:255"`
	PriceID           string `gorm:"size:255"`
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

// IsPremium 派生判断：plan 为 premium 且当前计费周期未结束。
func (s *UserSubscription) IsPremium(now time.Time) bool {
	if s == nil {
		return false
	}
	return s.Plan == PlanPremium && s.CurrentPeriodEnd.After(now)
}
