package i18n

var catalog = map[Locale]map[string]string{
	EN: {
		"forbidden":           "You do not have permission to perform this action",
		"unauthorized":        "Please log in to access this page",
		"invalid_credentials": "Invalid username or password",
		"missing_credentials": "Please provide both username and password",
		"too_many_attempts":   "Too many login attempts, please try again later",
		"user_not_found":      "User not found",

		"time_range":     "Last %d minutes",
		"fetched_batch":  "Fetched batch %d, total messages: %d",
		"request_error":  "Request error: %s",
		"error_fetching": "Error fetching logs: %s",
		"parsing_error":  "Error parsing message: %s",

		"no_data":      "No data",
		"uptime_days":  "days",
		"unknown_host": "Unknown Host",
		"unknown":      "Unknown",

		"invalid_file_type":            "Invalid file type. Please use PNG, JPG, JPEG or GIF.",
		"file_too_large":               "File is too large",
		"task_title_assignee_required": "Title and assignee are required",
		"task_not_found":               "Task not found",
		"cannot_update_task":           "You cannot update this task",
		"cannot_delete_task":           "You cannot delete this task - you can only delete your own tasks",
		"access_denied_task":           "Access denied - you can only view your own tasks",
		"cannot_comment_task":          "You cannot comment on this task - you can only comment on your own tasks",
		"comment_empty":                "Comment cannot be empty",

		"invalid_department": "Invalid department selected",
		"equipment_required": "Item name is required",
	},
	PL: {
		"forbidden":           "Nie masz uprawnień do wykonania tej akcji",
		"unauthorized":        "Zaloguj się, aby uzyskać dostęp do tej strony",
		"invalid_credentials": "Nieprawidłowa nazwa użytkownika lub hasło",
		"missing_credentials": "Proszę podać nazwę użytkownika i hasło",
		"too_many_attempts":   "Zbyt wiele prób logowania, spróbuj ponownie później",
		"user_not_found":      "Użytkownik nie znaleziony",

		"time_range":     "Ostatnie %d minut",
		"fetched_batch":  "Pobrano partię %d, łączna liczba wiadomości: %d",
		"request_error":  "Błąd zapytania: %s",
		"error_fetching": "Błąd podczas pobierania logów: %s",
		"parsing_error":  "Błąd podczas przetwarzania wiadomości: %s",

		"no_data":      "Brak danych",
		"uptime_days":  "dni",
		"unknown_host": "Nieznany host",
		"unknown":      "Nieznany",

		"invalid_file_type":            "Nieprawidłowy typ pliku. Proszę użyć PNG, JPG, JPEG lub GIF.",
		"file_too_large":               "Plik jest zbyt duży",
		"task_title_assignee_required": "Tytuł i przypisany użytkownik są wymagane",
		"task_not_found":               "Zadanie nie znalezione",
		"cannot_update_task":           "Nie możesz zaktualizować tego zadania",
		"cannot_delete_task":           "Nie możesz usunąć tego zadania - możesz usuwać tylko swoje zadania",
		"access_denied_task":           "Dostęp zabroniony - możesz przeglądać tylko swoje zadania",
		"cannot_comment_task":          "Nie możesz komentować tego zadania - możesz komentować tylko swoje zadania",
		"comment_empty":                "Komentarz nie może być pusty",

		"invalid_department": "Wybrano nieprawidłowy dział",
		"equipment_required": "Nazwa sprzętu jest wymagana",
	},
}
