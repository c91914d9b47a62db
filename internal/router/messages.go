package router

// User-facing replies.
const (
	msgSearchHint       = "If you want to search for a similar reel, please use the command `search <your query>`"
	msgPendingExpired   = "Too late to process your last reel. Please try to send the reel again with your message within 1hr."
	msgReplyNotFound    = "Cannot add context to the message you replied to. Reel Not Found using reply_to."
	msgDescriptionError = "Error storing your description"
	msgDescriptionSaved = "Description saved"
	msgQuotaExceeded    = "Gemini API quota exceeded, try again later"
	msgCaptionFailed    = "Error processing your reel, try again later"
	msgStoreFailed      = "Error storing data, try again later"
	msgInternalReel     = "Internal error processing your reel"
	msgSearchFailed     = "Error finding similar reel"
	msgNoResults        = "No similar reel found yet. Send me a few reels first."
	msgReelSaved        = "Reel saved. Send a short description within the hour, or reply to the reel any time, to add your own notes."
	msgQuestion         = "I am still under development, but I am learning to answer your questions based on our conversation. Ask me anything!"
	msgUnsupported      = "Unsupported attachment type. Please send an Instagram reel."
	msgUnhandled        = "Unhandled message type."
)
