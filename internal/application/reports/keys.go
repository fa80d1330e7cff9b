package reports

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	listTTL     = 5 * time.Minute
	detailTTL   = 10 * time.Minute
	analysisTTL = 30 * time.Minute
)

func userReportsKey(userID int64) string {
	return fmt.Sprintf("user_reports:%d", userID)
}

// detail entries are per owner so a cached report is never served to another user
func reportDetailsKey(userID, reportID int64) string {
	return fmt.Sprintf("report_details:%d:%d", userID, reportID)
}

func analysisKey(reportID int64, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("analysis:%d:%s", reportID, hex.EncodeToString(sum[:]))
}

func analysisPattern(reportID int64) string {
	return fmt.Sprintf("analysis:%d:*", reportID)
}
