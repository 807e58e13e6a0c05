package repository

import (
	"go-match-chat/internal/model"
	"go-match-chat/pkg/config"
	"go-match-chat/pkg/db"
	"testing"

	"gorm.io/gorm"
)

// 连接测试数据库，不可用时跳过
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := config.InitTest(); err != nil {
		t.Skipf("test config not available: %v", err)
	}

	if err := db.InitDB(config.GlobalConfig.Database); err != nil {
		t.Skipf("test database not available: %v", err)
	}

	cleanupTables(t, db.DB)
	return db.DB
}

// 帮助函数：清空测试相关的表
func cleanupTables(t *testing.T, conn *gorm.DB) {
	for _, m := range []interface{}{&model.Message{}, &model.Match{}, &model.User{}} {
		if err := conn.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(m).Error; err != nil {
			t.Logf("Failed to cleanup table: %v", err)
		}
	}
}

func createTestUser(t *testing.T, repo *UserRepository, nickname string) *model.User {
	t.Helper()
	user := &model.User{
		Nickname: nickname,
		Age:      "18-22",
		Password: "hash",
	}
	if err := repo.Create(t.Context(), user); err != nil {
		t.Fatalf("Failed to create test user %s: %v", nickname, err)
	}
	return user
}
