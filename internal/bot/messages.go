package bot

const (
	textWelcome = "Hi! Send me any file and I will upload it to your storage account and reply with a share link.\n\n" +
		"Add an account first with /addaccount or from /settings."

	textHelp = "How it works:\n" +
		"1. Add a storage account: /addaccount <access-key> <secret>\n" +
		"2. Send or forward files to me.\n" +
		"3. I download each file, upload it to the selected account and reply with a link.\n\n" +
		"Commands:\n" +
		"/settings - account menu\n" +
		"/accounts - list your accounts\n" +
		"/switch <n> - use account n for uploads\n" +
		"/remove <n> - delete account n\n" +
		"/check <n> - re-check the login of account n\n" +
		"/selected - show the selected account\n" +
		"/clearaccounts - delete all your accounts\n" +
		"/status <job> - show a transfer\n" +
		"/cancel <job> - cancel a transfer"

	textSettings          = "Settings: choose an action."
	textAskCredential     = "Send the account login as: <access-key> <secret>"
	textAskSwitch         = "Send the number of the account to use for uploads."
	textAskRemove         = "Send the number of the account to remove."
	textAskCheck          = "Send the number of the account to check."
	textBadCredential     = "Please send exactly two values: <access-key> <secret>"
	textBadNumber         = "That is not a valid account number. Use /accounts to see the list."
	textNoAccounts        = "You have no accounts yet. Add one with /addaccount."
	textNoneSelected      = "No account selected. Uploads use your first account."
	textAccountsCleared   = "All your accounts were removed."
	textSendFile          = "Send me a file to upload, or /help."
	textNoFile            = "This message has no file I can upload."
	textDuplicate         = "This file is already in your queue."
	textShuttingDown      = "The bot is restarting. Please send the file again in a minute."
	textNotAdmin          = "This command is for admins only."
	textUsersCleared      = "Logged users cleared."
	textCancelNotFound    = "Session no longer active."
	textCancelAccepted    = "Cancelling..."
	textJobUsage          = "Usage: %s <job id>"
	textUnknownCommand    = "Unknown command. See /help."
	textNewUserLogMessage = "#New_Bot_User\nID: %d\nUsername: %s"
)
