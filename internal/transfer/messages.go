package transfer

import "fmt"

const (
	msgStartingDownload = "Starting download..."
	msgStartingUpload   = "Starting upload..."
	msgCancelled        = "Download Cancelled by User"
	msgCancelledQueued  = "Download Cancelled by User (removed from queue)"
	msgUploadCancelled  = "Upload Cancelled by User"
	msgShuttingDown     = "Transfer interrupted: the bot is shutting down."
	msgNotConfigured    = "No storage account configured. Add one with /addaccount or from /settings."
)

func msgDownloadFailed(err error) string {
	return fmt.Sprintf("Download failed: %v", err)
}

func msgUploadFailed(err error) string {
	return fmt.Sprintf("Upload failed: %v", err)
}

func msgUploaded(name, account, link string) string {
	return fmt.Sprintf("File uploaded successfully!\nName: %s\nAccount: %s\nLink: %s", name, account, link)
}
