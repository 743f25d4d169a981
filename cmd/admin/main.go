package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tailorcv/internal/config"
	"tailorcv/internal/database"
)

// 运维命令行：手工调整用户套餐或重置用量计数，绕过支付回调。
func main() {
	var (
		userID     = flag.Uint("user-id", 0, "目标用户 ID（必填）")
		setPlan    = flag.String("set-plan", "", "调整套餐：free 或 premium")
		periodDays = flag.Int("period-days", 31, "premium 套餐的有效天数")
		resetUsage = flag.Bool("reset-usage", false, "将用量计数清零")
		dbHost     = flag.String("db-host", "", "数据库 Host（可选，默认读 DATABASE_HOST）")
		dbPort     = flag.Int("db-port", 0, "数据库 Port（可选，默认读 DATABASE_PORT）")
		dbName     = flag.String("db-name", "", "数据库名（可选，默认读 POSTGRES_DB）")
		dbUser     = flag.String("db-user", "", "数据库用户（可选，默认读 POSTGRES_USER）")
		dbPass     = flag.String("db-password", "", "数据库密码（可选，默认读 POSTGRES_PASSWORD）")
		sslMode    = flag.String("db-sslmode", "", "数据库 SSLMODE（可选，默认读 DATABASE_SSLMODE）")
	)
	flag.Parse()

	if *userID == 0 {
		log.Fatal("missing required flag: --user-id")
	}
	if *setPlan == "" && !*resetUsage {
		log.Fatal("nothing to do: pass --set-plan or --reset-usage")
	}

	dbCfg, err := loadDatabaseConfig(*dbHost, *dbPort, *dbName, *dbUser, *dbPass, *sslMode)
	if err != nil {
		log.Fatalf("load database config: %v", err)
	}

	db, err := database.InitDatabase(dbCfg)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	if *setPlan != "" {
		if err := applyPlan(db, *userID, *setPlan, *periodDays); err != nil {
			log.Fatalf("set plan: %v", err)
		}
		fmt.Printf("用户 %d 的套餐已调整为 %s\n", *userID, *setPlan)
	}

	if *resetUsage {
		if err := db.Model(&database.UserUsage{}).
			Where("user_id = ?", *userID).
			Updates(map[string]any{
				"resume_count":        0,
				"ai_generation_count": 0,
			}).Error; err != nil {
			log.Fatalf("reset usage: %v", err)
		}
		fmt.Printf("用户 %d 的用量计数已清零\n", *userID)
	}
}

func applyPlan(db *gorm.DB, userID uint, plan string, periodDays int) error {
	switch plan {
	case database.PlanFree, database.PlanPremium:
	default:
		return fmt.Errorf("unknown plan %q", plan)
	}

	sub := database.UserSubscription{
		UserID: userID,
		Plan:   plan,
	}
	if plan == database.PlanPremium {
		sub.CurrentPeriodEnd = time.Now().AddDate(0, 0, periodDays)
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan", "current_period_end", "updated_at",
		}),
	}).Create(&sub).Error
}

func loadDatabaseConfig(host string, port int, name, user, password, sslmode string) (config.DatabaseConfig, error) {
	if strings.TrimSpace(host) == "" {
		host = os.Getenv("DATABASE_HOST")
	}
	if port <= 0 {
		if env := strings.TrimSpace(os.Getenv("DATABASE_PORT")); env != "" {
			p, err := strconv.Atoi(env)
			if err != nil {
				return config.DatabaseConfig{}, fmt.Errorf("parse DATABASE_PORT: %w", err)
			}
			port = p
		}
	}
	if strings.TrimSpace(name) == "" {
		name = os.Getenv("POSTGRES_DB")
	}
	if strings.TrimSpace(user) == "" {
		user = os.Getenv("POSTGRES_USER")
	}
	if strings.TrimSpace(password) == "" {
		password = os.Getenv("POSTGRES_PASSWORD")
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = os.Getenv("DATABASE_SSLMODE")
	}

	if strings.TrimSpace(host) == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}
	if strings.TrimSpace(sslmode) == "" {
		sslmode = "disable"
	}
	if strings.TrimSpace(name) == "" {
		return config.DatabaseConfig{}, errors.New("database name is required (POSTGRES_DB)")
	}
	if strings.TrimSpace(user) == "" {
		return config.DatabaseConfig{}, errors.New("database user is required (POSTGRES_USER)")
	}
	if strings.TrimSpace(password) == "" {
		return config.DatabaseConfig{}, errors.New("database password is required (POSTGRES_PASSWORD)")
	}

	return config.DatabaseConfig{
		Host:     host,
		Port:     port,
		Name:     name,
		User:     user,
		Password: password,
		SSLMode:  sslmode,
	}, nil
}
